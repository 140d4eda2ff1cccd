// Package identifier implements the CUI layout and its check digit.
//
// A CUI is 11 ASCII digits:
//
//	[species(1)][region(2)][sequence(7)][check(1)]
//
// The check digit is a Luhn variant over the 10-digit body: positions whose
// index has the same parity as the body length are doubled, doubled values
// above 9 have 9 subtracted, and the check is (10 - sum%10) % 10.
package identifier

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// BodyLength is the number of digits covered by the check digit.
	BodyLength = 10
	// Length is the full CUI length including the check digit.
	Length = BodyLength + 1
	// MaxSequence is the largest sequence a partition can hold.
	MaxSequence = 9_999_999
	// MaxSpeciesDigit and MaxRegionCode bound the partition key.
	MaxSpeciesDigit = 9
	MaxRegionCode   = 99
)

// ErrMalformed is returned for input that is not all digits or has the wrong length.
var ErrMalformed = errors.New("malformed identifier")

// Parts is a decoded CUI.
type Parts struct {
	SpeciesDigit int
	RegionCode   int
	Sequence     int
	Check        int
}

// Compute returns the check digit for a 10-digit body.
func Compute(body string) (int, error) {
	if len(body) != BodyLength {
		return 0, fmt.Errorf("%w: body must be %d digits, got %d", ErrMalformed, BodyLength, len(body))
	}
	parity := len(body) % 2
	sum := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: non-digit %q at position %d", ErrMalformed, c, i)
		}
		d := int(c - '0')
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10, nil
}

// Verify reports whether full is an 11-digit CUI whose last digit matches the
// check digit of the first 10.
func Verify(full string) bool {
	if len(full) != Length {
		return false
	}
	check := full[BodyLength]
	if check < '0' || check > '9' {
		return false
	}
	want, err := Compute(full[:BodyLength])
	if err != nil {
		return false
	}
	return int(check-'0') == want
}

// Build assembles a CUI from its partition key and sequence.
func Build(speciesDigit, regionCode, sequence int) (string, error) {
	if speciesDigit < 0 || speciesDigit > MaxSpeciesDigit {
		return "", fmt.Errorf("%w: species digit %d out of range", ErrMalformed, speciesDigit)
	}
	if regionCode < 0 || regionCode > MaxRegionCode {
		return "", fmt.Errorf("%w: region code %d out of range", ErrMalformed, regionCode)
	}
	if sequence < 1 || sequence > MaxSequence {
		return "", fmt.Errorf("%w: sequence %d out of range", ErrMalformed, sequence)
	}
	body := fmt.Sprintf("%d%02d%07d", speciesDigit, regionCode, sequence)
	check, err := Compute(body)
	if err != nil {
		return "", err
	}
	return body + strconv.Itoa(check), nil
}

// Parse decodes a CUI. The check digit is validated.
func Parse(full string) (Parts, error) {
	if !Verify(full) {
		return Parts{}, fmt.Errorf("%w: %q", ErrMalformed, full)
	}
	species := int(full[0] - '0')
	region, _ := strconv.Atoi(full[1:3])
	seq, _ := strconv.Atoi(full[3:BodyLength])
	return Parts{
		SpeciesDigit: species,
		RegionCode:   region,
		Sequence:     seq,
		Check:        int(full[BodyLength] - '0'),
	}, nil
}
