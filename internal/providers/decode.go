package providers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/chrissnell/flightkml/internal/aircraft"
)

// DecodeKeyedRecords reads the object found at keys (the document root when
// none are given) and returns every array-valued member as a record, keyed
// by its member name, in document order. Members that are not arrays are
// metadata and are skipped.
func DecodeKeyedRecords(data []byte, keys ...string) ([]aircraft.RawRecord, error) {
	records := []aircraft.RawRecord{}
	err := jsonparser.ObjectEach(data, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		if dt != jsonparser.Array {
			return nil
		}
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return fmt.Errorf("record key %q: %w", key, err)
		}
		fields, err := decodeFields(value)
		if err != nil {
			return fmt.Errorf("record %q: %w", name, err)
		}
		records = append(records, aircraft.RawRecord{Key: name, Fields: fields})
		return nil
	}, keys...)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DecodeListRecords reads the array found at keys and returns each nested
// array as a record keyed by its position. A missing or null array decodes to
// no records.
func DecodeListRecords(data []byte, keys ...string) ([]aircraft.RawRecord, error) {
	value, dt, _, err := jsonparser.Get(data, keys...)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) || (err == nil && dt == jsonparser.Null) {
		return []aircraft.RawRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	if dt != jsonparser.Array {
		return nil, fmt.Errorf("expected array, found %s", dt)
	}

	records := []aircraft.RawRecord{}
	var decodeErr error
	idx := 0
	_, err = jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
		key := strconv.Itoa(idx)
		idx++
		if decodeErr != nil || itemType != jsonparser.Array {
			return
		}
		fields, err := decodeFields(item)
		if err != nil {
			decodeErr = fmt.Errorf("record %s: %w", key, err)
			return
		}
		records = append(records, aircraft.RawRecord{Key: key, Fields: fields})
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return records, nil
}

// decodeFields flattens one record array into scalars. Nested values and
// scalars that fail to parse become nil, so a bad field is an absent field and
// the normalizer decides what the record is worth.
func decodeFields(data []byte) ([]any, error) {
	fields := []any{}
	_, err := jsonparser.ArrayEach(data, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
		fields = append(fields, scalar(value, dt))
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func scalar(value []byte, dt jsonparser.ValueType) any {
	var (
		v   any
		err error
	)
	switch dt {
	case jsonparser.Number:
		v, err = jsonparser.ParseFloat(value)
	case jsonparser.String:
		v, err = jsonparser.ParseString(value)
	case jsonparser.Boolean:
		v, err = jsonparser.ParseBoolean(value)
	}
	if err != nil {
		return nil
	}
	return v
}
