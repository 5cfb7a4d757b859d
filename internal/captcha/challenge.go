package captcha

import "time"

// State is the lifecycle position of a challenge. There is no terminal
// state: any state can move back to Challenged through a refresh.
type State string

const (
	StateUnchallenged State = "unchallenged"
	StateChallenged   State = "challenged"
	StateVerified     State = "verified"
	StateFailed       State = "failed"
)

// Challenge is one CAPTCHA shown to one form session. Code is secret and
// never leaves the server; Image is the PNG rendering of Code and is
// replaced whenever Code changes.
type Challenge struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Image     []byte    `json:"image"`
	State     State     `json:"state"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verified reports whether the most recent entry matched.
func (c *Challenge) Verified() bool { return c.State == StateVerified }

// Expired reports whether the challenge can no longer be answered.
func (c *Challenge) Expired(now time.Time) bool { return !c.ExpiresAt.After(now) }

// issue installs a freshly generated code and its image.
func (c *Challenge) issue(code string, img []byte) {
	c.Code = code
	c.Image = img
	c.State = StateChallenged
}

// check applies an entry to the challenge. A blank entry leaves the state
// alone. A mismatch moves it to Failed; the caller is expected to re-issue.
func (c *Challenge) check(entered string) error {
	ok, err := Verify(entered, c.Code)
	if err != nil {
		return err
	}
	c.Attempts++
	if ok {
		c.State = StateVerified
		return nil
	}
	c.State = StateFailed
	return ErrMismatch
}
