package reactor

// Recover replays every persisted task descriptor as a push against
// one shared, routeless future, so recovery never replies to an
// external client. desc.URL names the application to push against,
// mirroring the way an external push request's target names one.
func (c *Core) Recover() {
	if c.Persistence == nil {
		return
	}
	tasks, err := c.Persistence.All()
	if err != nil {
		log.Error("recovery: list persisted tasks failed", "err", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	f := c.Futures.New(nil, len(tasks))
	for _, desc := range tasks {
		args := desc.Args
		if args == nil {
			args = make(map[string]interface{})
		}
		args["token"] = desc.Token
		c.push(f.ID, desc.URL, args)
	}
}
