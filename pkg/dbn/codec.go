package dbn

import (
	"fmt"
	"math"
)

// RTypeFromSchema returns the record tag carried by a single-schema stream.
func RTypeFromSchema(schema Schema) (RType, error) {
	switch schema {
	case SchemaMbo:
		return RTypeMbo, nil
	case SchemaMbp1, SchemaTbbo:
		return RTypeMbp1, nil
	case SchemaMbp10:
		return RTypeMbp10, nil
	case SchemaTrades:
		return RTypeMbp0, nil
	case SchemaOhlcv1S:
		return RTypeOhlcv1S, nil
	case SchemaOhlcv1M:
		return RTypeOhlcv1M, nil
	case SchemaOhlcv1H:
		return RTypeOhlcv1H, nil
	case SchemaOhlcv1D:
		return RTypeOhlcv1D, nil
	case SchemaDefinition:
		return RTypeInstrumentDef, nil
	case SchemaStatistics:
		return RTypeStatistics, nil
	case SchemaImbalance:
		return RTypeImbalance, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedSchema, schema)
	}
}

// SizeOfSchema returns the size in bytes of one record of schema,
// excluding any ts_out trailer.
func SizeOfSchema(schema Schema) (int, error) {
	rtype, err := RTypeFromSchema(schema)
	if err != nil {
		return 0, err
	}
	size, _ := rtype.Size()
	return size, nil
}

// PriceToFloat64 converts a fixed-point price. Undefined prices map to NaN.
func PriceToFloat64(px int64) float64 {
	if px == UndefPrice {
		return math.NaN()
	}
	return float64(px) / float64(FixedPriceScale)
}
