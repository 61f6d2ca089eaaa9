package room

import "context"

// Broadcast appends a message with the next seq and emits a message
// notification.
func (s *Store) Broadcast(ctx context.Context, sender, body string, priority Priority, kind MessageKind) (*Message, error) {
	if kind == "" {
		kind = MessageBroadcast
	}
	if priority == "" {
		priority = PriorityNormal
	}

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return nil, err
	}

	m := &Message{
		Seq:       seq,
		Timestamp: s.now(),
		Sender:    sender,
		Kind:      kind,
		Body:      body,
		Priority:  priority,
	}
	data, merr := marshal(m)
	if merr != nil {
		return nil, New(KindInternal, merr.Error())
	}
	if err := s.backend.Append(ctx, s.messagesLogKey(), data); err != nil {
		return nil, s.translateBackendErr(err)
	}

	s.publish("message", seq, m)
	return m, nil
}

// Messages returns messages with seq > sinceSeq, up to limit, oldest
// first. Never writes.
func (s *Store) Messages(ctx context.Context, sinceSeq int64, limit int) ([]*Message, error) {
	lines, err := s.backend.ReadLog(ctx, s.messagesLogKey())
	if err != nil {
		return nil, s.translateBackendErr(err)
	}

	var out []*Message
	for _, line := range lines {
		var m Message
		if unmarshal(line, &m) != nil {
			continue
		}
		if m.Seq > sinceSeq {
			out = append(out, &m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
