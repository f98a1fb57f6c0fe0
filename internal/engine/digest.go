package engine

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/mcoot/battleship/internal/model"
)

// Digest hashes the content of a move log. Timestamps are not part of the digest.
func Digest(moves []model.Move) uint64 {
	h := xxhash.New()
	buf := make([]byte, 0, 128)
	for _, m := range moves {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(m.Index), 10)
		buf = append(buf, '|')
		buf = append(buf, string(m.TransitionID)...)
		buf = append(buf, '|')
		buf = append(buf, string(m.Kind)...)
		buf = append(buf, '|')
		buf = append(buf, string(m.PlayerID)...)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(m.Target.Row), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(m.Target.Col), 10)
		buf = append(buf, '|')
		buf = append(buf, string(m.Result)...)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(m.SunkLength), 10)
		buf = append(buf, '\n')
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}
