package credits

import (
	"errors"
	"math/big"
	"testing"
)

type recordingSink struct {
	mints     []Command
	transfers []Command
	failOn    CommandKind
}

var errSinkFailure = errors.New("sink failure")

func (s *recordingSink) MintAsset(recipient [20]byte, assetID uint64, quantity uint64) error {
	if s.failOn == CommandMint {
		return errSinkFailure
	}
	s.mints = append(s.mints, MintCommand(recipient, assetID, quantity))
	return nil
}

func (s *recordingSink) TransferValue(recipient [20]byte, amount *big.Int) error {
	if s.failOn == CommandTransferValue {
		return errSinkFailure
	}
	s.transfers = append(s.transfers, TransferValueCommand(recipient, amount))
	return nil
}

func TestApplyCommands(t *testing.T) {
	recipient := [20]byte{0x01}
	sink := &recordingSink{}
	cmds := []Command{
		NoOpCommand(),
		MintCommand(recipient, 7, 2),
		TransferValueCommand(recipient, big.NewInt(500)),
		NoOpCommand(),
	}

	if err := ApplyCommands(sink, cmds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.mints) != 1 || sink.mints[0].AssetID != 7 || sink.mints[0].Quantity != 2 {
		t.Fatalf("unexpected mint calls: %+v", sink.mints)
	}
	if len(sink.transfers) != 1 || sink.transfers[0].Amount.String() != "500" {
		t.Fatalf("unexpected transfer calls: %+v", sink.transfers)
	}
}

func TestApplyCommandsStopsOnFailure(t *testing.T) {
	recipient := [20]byte{0x02}
	sink := &recordingSink{failOn: CommandMint}
	cmds := []Command{
		TransferValueCommand(recipient, big.NewInt(1)),
		MintCommand(recipient, 1, 1),
		TransferValueCommand(recipient, big.NewInt(2)),
	}

	err := ApplyCommands(sink, cmds)
	if !errors.Is(err, errSinkFailure) {
		t.Fatalf("expected sink failure, got %v", err)
	}
	if len(sink.transfers) != 1 {
		t.Fatalf("commands after the failure must not run, got %d transfers", len(sink.transfers))
	}
}

func TestApplyCommandsRejectsUnknownKind(t *testing.T) {
	err := ApplyCommands(&recordingSink{}, []Command{{Kind: CommandKind(99)}})
	if !errors.Is(err, errUnknownCommand) {
		t.Fatalf("expected errUnknownCommand, got %v", err)
	}
}

func TestTransferValueCommandClonesAmount(t *testing.T) {
	amount := big.NewInt(42)
	cmd := TransferValueCommand([20]byte{}, amount)
	amount.SetInt64(99)
	if cmd.Amount.String() != "42" {
		t.Fatalf("command amount aliases caller value: %s", cmd.Amount)
	}

	nilCmd := TransferValueCommand([20]byte{}, nil)
	if nilCmd.Amount == nil || nilCmd.Amount.Sign() != 0 {
		t.Fatalf("nil amount should normalise to zero, got %v", nilCmd.Amount)
	}
}
