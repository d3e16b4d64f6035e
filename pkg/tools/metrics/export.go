package metrics

import (
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts v, any JSON encodable value, into a protobuf Struct.
// Decimal values travel as their exact string form.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unable to encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unable to decode: %w", err)
	}
	return structpb.NewStruct(m)
}

// Export writes the statistics and the daily table as one JSON document.
func Export(w io.Writer, stats Statistics, rows []DailyRow) error {
	doc, err := ExportBytes(stats, rows)
	if err != nil {
		return err
	}
	_, err = w.Write(doc)
	return err
}

func ExportBytes(stats Statistics, rows []DailyRow) ([]byte, error) {
	statsStruct, err := ToStruct(stats)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}

	daily := make([]*structpb.Value, 0, len(rows))
	for idx, row := range rows {
		rowStruct, err := ToStruct(row)
		if err != nil {
			return nil, fmt.Errorf("daily row %d: %w", idx, err)
		}
		daily = append(daily, structpb.NewStructValue(rowStruct))
	}

	doc := &structpb.Struct{Fields: map[string]*structpb.Value{
		"statistics": structpb.NewStructValue(statsStruct),
		"daily":      structpb.NewListValue(&structpb.ListValue{Values: daily}),
	}}

	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
}
