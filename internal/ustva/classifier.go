package ustva

import "github.com/shopspring/decimal"

// Bucket is the UStVA rate bucket a document falls into.
type Bucket int

const (
	// BucketOther collects every rate without its own Kennziffer. It contributes
	// nothing to the return.
	BucketOther Bucket = iota
	BucketStandard19
	BucketReduced7
)

var (
	rateStandard = decimal.NewFromInt(19)
	rateReduced  = decimal.NewFromInt(7)
)

// Classify maps a tax rate in percent to its bucket. Only 19 % and 7 % are
// aggregated; 0 % and any other rate are Other.
func Classify(rate decimal.Decimal) Bucket {
	switch {
	case rate.Equal(rateStandard):
		return BucketStandard19
	case rate.Equal(rateReduced):
		return BucketReduced7
	}
	return BucketOther
}

// String returns the bucket name used in logs.
func (b Bucket) String() string {
	switch b {
	case BucketStandard19:
		return "19%"
	case BucketReduced7:
		return "7%"
	}
	return "other"
}
