package cassandra

import (
	"encoding/json"
	"fmt"

	"github.com/artpar/recordbase/domain/record"
)

func marshalRecord(r record.Record) (string, error) {
	doc, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("cassandra: marshal record: %w", err)
	}
	return string(doc), nil
}

func unmarshalRecord(doc string) (record.Record, error) {
	var r record.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("cassandra: unmarshal record: %w", err)
	}
	return r, nil
}
