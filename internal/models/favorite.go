package models

// FavoriteLocation is a user-named, reusable coordinate.
type FavoriteLocation struct {
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
	Address  *string    `json:"address,omitempty"`
}

// Validate checks that the favorite has a name and a valid coordinate.
func (f *FavoriteLocation) Validate() error {
	if err := ValidateName(f.Name); err != nil {
		return err
	}
	return f.Location.Validate()
}

// Clone returns a deep copy of the favorite.
func (f FavoriteLocation) Clone() FavoriteLocation {
	if f.Address != nil {
		addr := *f.Address
		f.Address = &addr
	}
	return f
}
