package live

import "encoding/json"

// Publish JSON-marshals msg and publishes it on subject.
func Publish[T any](c *Context, subject string, msg T) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.Publish(subject, data)
}

// Subscribe JSON-unmarshals each message on subject as T and calls handler.
// Messages that do not decode are skipped.
func Subscribe[T any](c *Context, subject string, handler func(T)) (Subscription, error) {
	return c.Subscribe(subject, func(data []byte) {
		var msg T
		if err := json.Unmarshal(data, &msg); err != nil {
			c.app.logDebug(c, "skipping undecodable message on %q: %v", subject, err)
			return
		}
		handler(msg)
	})
}
