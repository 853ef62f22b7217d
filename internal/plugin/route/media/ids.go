package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// parseSeq parses a sequence number path segment.
func parseSeq(raw string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// seqList decodes a JSON array of sequence numbers. Elements may be JSON
// integers or decimal strings; anything else is rejected.
type seqList []int64

func (l *seqList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("orderedIds must be an array")
	}
	out := make(seqList, 0, len(raw))
	for i, r := range raw {
		r = bytes.TrimSpace(r)
		var s string
		if len(r) > 0 && r[0] == '"' {
			if err := json.Unmarshal(r, &s); err != nil {
				return fmt.Errorf("orderedIds[%d]: %w", i, err)
			}
		} else {
			s = string(r)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("orderedIds[%d] is not an integer: %s", i, r)
		}
		out = append(out, n)
	}
	*l = out
	return nil
}
