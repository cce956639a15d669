package cache

// Node is an element of a List. The node stores its key so that the owner
// can drop the matching index entry when the node is evicted.
type Node[K comparable] struct {
	key  K
	prev *Node[K]
	next *Node[K]
}

// Key returns the key stored in the node.
func (n *Node[K]) Key() K {
	return n.key
}

// List is a doubly-linked recency list.
// The list is not thread-safe; callers must handle synchronization.
//
// The head is the most recently used, tail is least recently used.
type List[K comparable] struct {
	head *Node[K]
	tail *Node[K]
	len  int
}

// Len returns the number of nodes in the list.
func (l *List[K]) Len() int {
	return l.len
}

// PushFront adds key at the front (most recently used) and returns its node.
func (l *List[K]) PushFront(key K) *Node[K] {
	node := &Node[K]{key: key}
	l.linkFront(node)
	return node
}

// MoveToFront marks an existing node as most recently used.
func (l *List[K]) MoveToFront(node *Node[K]) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove removes a node from the list.
func (l *List[K]) Remove(node *Node[K]) {
	if node == nil {
		return
	}
	l.unlink(node)
}

// RemoveOldest removes and returns the key of the least recently used node.
// Returns zero value and false if list is empty.
func (l *List[K]) RemoveOldest() (K, bool) {
	if l.tail == nil {
		var zero K
		return zero, false
	}
	node := l.tail
	l.unlink(node)
	return node.key, true
}

// Oldest returns the key of the least recently used node without removing it.
func (l *List[K]) Oldest() (K, bool) {
	if l.tail == nil {
		var zero K
		return zero, false
	}
	return l.tail.key, true
}

// Clear removes all nodes from the list.
func (l *List[K]) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}

func (l *List[K]) linkFront(node *Node[K]) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	} else {
		l.tail = node
	}
	l.head = node
	l.len++
}

// unlink detaches node and clears its links.
func (l *List[K]) unlink(node *Node[K]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}

	node.prev = nil
	node.next = nil
	l.len--
}
