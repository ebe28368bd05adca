package chain

import (
	"bytes"
	_ "embed"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

//go:embed TicketNFT.abi.json
var ticketABIJSON []byte

// TicketABI parses the embedded TicketNFT contract ABI.
func TicketABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(ticketABIJSON))
	if err != nil {
		return abi.ABI{}, errors.Wrap(err, "parse TicketNFT ABI")
	}
	return parsed, nil
}

// decodeEvents decodes every log emitted by contract. Logs from other
// addresses and logs that do not match a known event are skipped.
func decodeEvents(contractABI abi.ABI, contract common.Address, logs []*types.Log) map[string]Event {
	events := make(map[string]Event)

	for _, lg := range logs {
		if lg == nil || lg.Address != contract || len(lg.Topics) == 0 {
			continue
		}

		ev, err := contractABI.EventByID(lg.Topics[0])
		if err != nil {
			continue
		}
		if _, seen := events[ev.Name]; seen {
			continue
		}

		fields, err := decodeLog(contractABI, ev, lg)
		if err != nil {
			slog.Warn("Failed to decode contract log",
				"event", ev.Name,
				"txHash", lg.TxHash.Hex(),
				"logIndex", lg.Index,
				"error", err,
			)
			continue
		}

		events[ev.Name] = Event{Name: ev.Name, Fields: fields}
	}

	return events
}

func decodeLog(contractABI abi.ABI, ev *abi.Event, lg *types.Log) (map[string]any, error) {
	fields := make(map[string]any)

	if len(lg.Data) > 0 {
		if err := contractABI.UnpackIntoMap(fields, ev.Name, lg.Data); err != nil {
			return nil, errors.Wrap(err, "unpack data")
		}
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
		return nil, errors.Wrap(err, "parse topics")
	}

	return fields, nil
}
