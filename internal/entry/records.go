package entry

import (
	"bytes"
	"fmt"
)

// Records is the input of a delete hook: one record for a single deletion or
// many for a batch. Both shapes decode into the same ordered slice.
type Records []Entry

// Single wraps one record.
func Single(e Entry) Records {
	return Records{e}
}

// DecodeRecords parses either a JSON object or a JSON array of objects.
func DecodeRecords(data []byte) (Records, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode records: empty input")
	}

	if trimmed[0] == '{' {
		e, err := Decode(trimmed)
		if err != nil {
			return nil, err
		}
		return Single(e), nil
	}

	// A plain slice, so decoding does not re-enter Records.UnmarshalJSON.
	var rs []Entry
	if err := decodeOne(trimmed, &rs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return Records(rs), nil
}

// UnmarshalJSON lets Records appear directly in request params.
func (r *Records) UnmarshalJSON(data []byte) error {
	rs, err := DecodeRecords(data)
	if err != nil {
		return err
	}
	*r = rs
	return nil
}

// IDs returns record identifiers in input order. The second result counts
// records that carried no usable id and were left out.
func (r Records) IDs() ([]string, int) {
	ids := make([]string, 0, len(r))
	dropped := 0
	for _, e := range r {
		id, ok := e.ID()
		if !ok {
			dropped++
			continue
		}
		ids = append(ids, id)
	}
	return ids, dropped
}
