package enums

import "fmt"

// MovementType classifies an append-only inventory movement.
type MovementType string

const (
	MovementTypeRestock    MovementType = "restock"
	MovementTypeSale       MovementType = "sale"
	MovementTypeAdjustment MovementType = "adjustment"
	MovementTypeReturn     MovementType = "return"
)

var validMovementTypes = []MovementType{
	MovementTypeRestock,
	MovementTypeSale,
	MovementTypeAdjustment,
	MovementTypeReturn,
}

// IsValid reports whether the value matches the canonical movement enum.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
