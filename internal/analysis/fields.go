package analysis

import (
	"fmt"
	"strings"

	"github.com/Simplici0/shouldcost/internal/rollup"
)

// Field names accepted by EditField.
const (
	FieldCategory         = "category"
	FieldItem             = "item"
	FieldUnitPrice        = "unit_price"
	FieldCFUnit           = "cf_unit"
	FieldConversionFactor = "conversion_factor"
	FieldOverride         = "override"
	FieldDirectValue      = "direct_value"
	FieldLow              = "low"
	FieldBase             = "base"
	FieldHigh             = "high"
	FieldSourceTag        = "source_tag"
	FieldSourceNotes      = "source_notes"
	FieldAttachmentRef    = "attachment_ref"
)

func numField(row *rollup.LineItem, field string) *rollup.Num {
	switch field {
	case FieldUnitPrice:
		return &row.UnitPrice
	case FieldConversionFactor:
		return &row.ConversionFactor
	case FieldOverride:
		return &row.OverrideValue
	case FieldDirectValue:
		return &row.DirectValue
	case FieldLow:
		return &row.Low
	case FieldBase:
		return &row.Base
	case FieldHigh:
		return &row.High
	}
	return nil
}

func textField(row *rollup.LineItem, field string) *string {
	switch field {
	case FieldCategory:
		return &row.Category
	case FieldItem:
		return &row.Item
	case FieldCFUnit:
		return &row.CFUnit
	case FieldSourceTag:
		return &row.SourceTag
	case FieldSourceNotes:
		return &row.SourceNotes
	case FieldAttachmentRef:
		return &row.AttachmentRef
	}
	return nil
}

func setField(row *rollup.LineItem, field string, value any) error {
	field = strings.ToLower(strings.TrimSpace(field))
	if n := numField(row, field); n != nil {
		*n = rollup.ToNumber(value)
		return nil
	}
	if s := textField(row, field); s != nil {
		*s = textValue(value)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownField, field)
}

func textValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// KnownField reports whether EditField accepts the field name.
func KnownField(field string) bool {
	field = strings.ToLower(strings.TrimSpace(field))
	var probe rollup.LineItem
	return numField(&probe, field) != nil || textField(&probe, field) != nil
}
