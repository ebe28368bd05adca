package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("tickets")

		// token ids and wei amounts are uint256 on-chain, so they are stored as
		// decimal strings rather than number fields
		collection.Fields.Add(
			&core.TextField{
				Name:     "ticket_id",
				Required: true,
				Pattern:  `^[0-9]+$`,
			},
			&core.TextField{
				Name:     "owner",
				Required: true,
			},
			&core.TextField{
				Name:    "base_price",
				Pattern: `^[0-9]*$`,
			},
			&core.TextField{
				Name:    "sale_price",
				Pattern: `^[0-9]*$`,
			},
			&core.TextField{
				Name: "token_uri",
			},
			&core.BoolField{
				Name: "validated",
			},
			&core.RelationField{
				Name:          "event",
				CollectionId:  events.Id,
				MaxSelect:     1,
				CascadeDelete: false,
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
			&core.AutodateField{
				Name:     "updated",
				OnCreate: true,
				OnUpdate: true,
			},
		)

		collection.AddIndex("idx_tickets_ticket_id", true, "`ticket_id`", "")
		collection.AddIndex("idx_tickets_owner", false, "`owner`", "")
		collection.AddIndex("idx_tickets_event", false, "`event`", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
