package integrity

import "fmt"

// IntegrityError reports content drift between what the archive promises
// and what is actually there. Counted and reported, per contract, never
// fatal to a whole run.
type IntegrityError struct {
	What     string
	Expected string
	Actual   string
}

func (self *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in %s: expected %s, got %s", self.What, self.Expected, self.Actual)
}
