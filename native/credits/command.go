package credits

import (
	"errors"
	"math/big"
)

var errUnknownCommand = errors.New("credits: unknown command kind")

// CommandKind tags the variants of the settlement command protocol.
type CommandKind uint8

const (
	// CommandNoOp instructs the interpreter to do nothing.
	CommandNoOp CommandKind = iota
	// CommandMint instructs the interpreter to mint asset units.
	CommandMint
	// CommandTransferValue instructs the interpreter to move base currency.
	CommandTransferValue
)

// Command is one instruction produced by a strategy in response to a
// settlement request. Commands are created and consumed within a single
// settlement call and never retained across calls.
type Command struct {
	Kind      CommandKind
	Recipient [20]byte
	AssetID   uint64
	Quantity  uint64
	Amount    *big.Int
}

// MintCommand builds a mint instruction.
func MintCommand(recipient [20]byte, assetID uint64, quantity uint64) Command {
	return Command{Kind: CommandMint, Recipient: recipient, AssetID: assetID, Quantity: quantity}
}

// TransferValueCommand builds a value-transfer instruction.
func TransferValueCommand(recipient [20]byte, amount *big.Int) Command {
	cmd := Command{Kind: CommandTransferValue, Recipient: recipient, Amount: big.NewInt(0)}
	if amount != nil {
		cmd.Amount = new(big.Int).Set(amount)
	}
	return cmd
}

// NoOpCommand builds a no-op instruction.
func NoOpCommand() Command { return Command{Kind: CommandNoOp} }

// CommandSink is the surface an interpreter mutates while applying commands.
// Issuers implement it against their own asset bookkeeping.
type CommandSink interface {
	MintAsset(recipient [20]byte, assetID uint64, quantity uint64) error
	TransferValue(recipient [20]byte, amount *big.Int) error
}

// ApplyCommands runs the supplied command sequence against the sink. The
// first failing command aborts the sequence; callers are expected to treat a
// partial application as a full failure and unwind.
func ApplyCommands(sink CommandSink, cmds []Command) error {
	for _, cmd := range cmds {
		switch cmd.Kind {
		case CommandNoOp:
		case CommandMint:
			if err := sink.MintAsset(cmd.Recipient, cmd.AssetID, cmd.Quantity); err != nil {
				return err
			}
		case CommandTransferValue:
			if err := sink.TransferValue(cmd.Recipient, cmd.Amount); err != nil {
				return err
			}
		default:
			return errUnknownCommand
		}
	}
	return nil
}

// Issuer is the external component that owns mintable assets. A mint call is
// opaque to the engine: it either fully succeeds or fully fails.
type Issuer interface {
	AssetInfo(assetID uint64) (AssetInfo, error)
	Mint(strategy [20]byte, assetID uint64, quantity uint64, referrers [][20]byte, args []byte, value *big.Int) error
}

// Strategy supplies pricing and the command sequence fulfilling a mint
// request. The issuer, not the engine, applies the returned commands.
type Strategy interface {
	PriceQuote(issuer [20]byte, assetID uint64, quantity uint64) (PricingQuote, error)
	Quote(caller [20]byte, assetID uint64, quantity uint64, value *big.Int, args []byte) ([]Command, error)
}

// Router executes opaque swap instruction payloads with attached value.
type Router interface {
	Execute(commands []byte, inputs []byte, value *big.Int) error
}

// ContractRegistry resolves collaborator addresses to live contract
// implementations. A failed resolution is how the engine detects that a
// target address is not a contract.
type ContractRegistry interface {
	IssuerAt(addr [20]byte) (Issuer, bool)
	StrategyAt(addr [20]byte) (Strategy, bool)
	RouterAt(addr [20]byte) (Router, bool)
}
