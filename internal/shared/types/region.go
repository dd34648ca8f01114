package types

import "fmt"

// Region is the (city, district, pincode) tuple used to restrict
// assignment to local workers. A complaint inherits its region from the
// reporter at creation time and never changes it.
type Region struct {
	City     string `json:"city"`
	District string `json:"district"`
	Pincode  string `json:"pincode"`
}

// NewRegion creates a validated region.
func NewRegion(city, district, pincode string) (Region, error) {
	r := Region{City: city, District: district, Pincode: pincode}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks the region fields. Pincodes are six digits.
func (r Region) Validate() error {
	if r.City == "" {
		return fmt.Errorf("city is required")
	}
	if r.District == "" {
		return fmt.Errorf("district is required")
	}
	if len(r.Pincode) != 6 {
		return fmt.Errorf("pincode must be 6 digits")
	}
	for i := 0; i < len(r.Pincode); i++ {
		if r.Pincode[i] < '0' || r.Pincode[i] > '9' {
			return fmt.Errorf("pincode must be 6 digits")
		}
	}
	return nil
}

// Equals compares two regions field by field.
func (r Region) Equals(other Region) bool {
	return r.City == other.City && r.District == other.District && r.Pincode == other.Pincode
}

// String returns a human-readable form, used in history notes.
func (r Region) String() string {
	return fmt.Sprintf("%s, %s %s", r.District, r.City, r.Pincode)
}
