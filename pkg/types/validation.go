package types

// CheckHash applies the record hash format check. Only a minimum length is
// enforced.
func CheckHash(hash string, minLength int) error {
	if len(hash) < minLength {
		return NewError(KindInvalidParameter, "hash must be at least %d characters, got %d", minLength, len(hash))
	}
	return nil
}
