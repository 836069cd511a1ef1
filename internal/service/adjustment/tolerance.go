package adjustment

import "github.com/shopspring/decimal"

// Tolerance - допустимое отклонение набранного веса от заданного, 5%.
var Tolerance = decimal.RequireFromString("0.05")

// WithinTolerance - |picked - target| <= target * 5%.
func WithinTolerance(target, picked decimal.Decimal) bool {
	return picked.Sub(target).Abs().LessThanOrEqual(target.Mul(Tolerance))
}

// MaxPickable - верхняя граница набора по материалу.
func MaxPickable(target decimal.Decimal) decimal.Decimal {
	return target.Add(target.Mul(Tolerance))
}
