package engine

// blockList is component C1: a doubly-linked list of Metadata records
// kept sorted by ascending address (offset). It is a passive structure
// with no concurrency of its own; misuse (removing a non-member, for
// instance) is a programmer bug, not a reported error — the same
// contract the original list::insert/list::remove pair had.
type blockList struct {
	head, tail *Metadata
	length     int
}

// insert links m into the list at the position that keeps offsets
// ascending. Empty-list and address-extreme cases are fast paths, as
// in the reference list::insert.
func (l *blockList) insert(m *Metadata) {
	m.next, m.prev = nil, nil

	if l.length == 0 {
		l.head, l.tail = m, m
		l.length++
		return
	}

	if m.offset < l.head.offset {
		m.next = l.head
		l.head.prev = m
		l.head = m
		l.length++
		return
	}

	if m.offset > l.tail.offset {
		m.prev = l.tail
		l.tail.next = m
		l.tail = m
		l.length++
		return
	}

	for cur := l.head; cur != nil && cur.next != nil; cur = cur.next {
		if m.offset >= cur.offset && m.offset <= cur.next.offset {
			m.next = cur.next
			m.next.prev = m
			m.prev = cur
			cur.next = m
			l.length++
			return
		}
	}
}

// remove unlinks m, restoring head/tail as needed. Precondition: m is
// currently a member of l.
func (l *blockList) remove(m *Metadata) {
	switch {
	case l.length == 1:
		l.head, l.tail = nil, nil
	case m == l.tail:
		l.tail = m.prev
		l.tail.next = nil
	case m == l.head:
		l.head = m.next
		l.head.prev = nil
	default:
		m.prev.next = m.next
		m.next.prev = m.prev
	}
	m.next, m.prev = nil, nil
	l.length--
}

// popHead removes and returns the head of the list, or nil if empty.
func (l *blockList) popHead() *Metadata {
	if l.length == 0 {
		return nil
	}
	m := l.head
	l.remove(m)
	return m
}
