package checkin

import "github.com/mcoot/mysphere/internal/model"

// Observer receives every phase of every write the service performs.
// It is called synchronously and must not block.
type Observer func(model.TxUpdate)

// Observers fans one update out to each non-nil observer in order
func Observers(obs ...Observer) Observer {
	return func(u model.TxUpdate) {
		for _, o := range obs {
			if o != nil {
				o(u)
			}
		}
	}
}
