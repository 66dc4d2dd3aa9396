package rtl

// Message is a numeric-id message routed through the class message tables.
// Handlers receive the *Message as their only argument and may fill Result.
type Message struct {
	ID      int
	Payload any
	Result  any
}

// StrMessage is the string-id counterpart of Message.
type StrMessage struct {
	ID      string
	Payload any
	Result  any
}

// Dispatch invokes the handler registered for msg.ID by the most-derived
// class in the chain that has one. With no handler anywhere in the chain,
// the defaulthandler slot receives the message instead.
func (inst *Instance) Dispatch(msg *Message) error {
	if msg == nil {
		return nil
	}
	for c := inst.class; c != nil; c = c.Ancestor {
		if name, ok := c.msgInt[msg.ID]; ok {
			_, err := inst.Call(name, msg)
			return err
		}
	}
	_, err := inst.Call(selDefaultHandler, msg)
	return err
}

// DispatchStr is Dispatch for string message ids; the fallback slot is
// defaulthandlerstr.
func (inst *Instance) DispatchStr(msg *StrMessage) error {
	if msg == nil {
		return nil
	}
	for c := inst.class; c != nil; c = c.Ancestor {
		if name, ok := c.msgStr[msg.ID]; ok {
			_, err := inst.Call(name, msg)
			return err
		}
	}
	_, err := inst.Call(selDefaultHandlerStr, msg)
	return err
}

// HandlerFor reports which method would receive a numeric message id and
// the class that registered it. Returns ("", nil) when the default handler
// would run.
func (c *Class) HandlerFor(id int) (string, *Class) {
	for current := c; current != nil; current = current.Ancestor {
		if name, ok := current.msgInt[id]; ok {
			return name, current
		}
	}
	return "", nil
}
