package channel

import (
	"github.com/jzx17/matrixpipe/pkg/matrix"
)

// Kind tags a Message
type Kind int

const (
	// KindPair carries a matrix pair to multiply
	KindPair Kind = iota
	// KindEnd marks that no further pairs will be sent
	KindEnd
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindPair:
		return "pair"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Message is the unit queued on a Channel: either a Pair or the End sentinel
type Message struct {
	Kind Kind

	// Pair is set when Kind is KindPair
	Pair matrix.Pair

	// Seq is the enqueue position, assigned by the Channel starting at 1
	Seq uint64
}

// PairMessage wraps p
func PairMessage(p matrix.Pair) Message {
	return Message{Kind: KindPair, Pair: p}
}

// EndMessage returns the End sentinel
func EndMessage() Message {
	return Message{Kind: KindEnd}
}

// IsEnd reports whether m is the End sentinel
func (m Message) IsEnd() bool {
	return m.Kind == KindEnd
}
