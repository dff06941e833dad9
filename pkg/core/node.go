package core

import (
	"sync"

	"github.com/pion/rtp"
)

type Packet = rtp.Packet

// HandlerFunc - process input packets (just like http.HandlerFunc)
type HandlerFunc func(packet *Packet)

// Node - Receiver or Sender in the packet graph.
// Receiver is a root, Senders are its childs.
type Node struct {
	Codec  *Codec
	Input  HandlerFunc
	Output HandlerFunc

	id      uint32
	childs  []*Node
	parents []*Node

	// owner cleanup, Sender closes its buffer here
	onClose func()

	mu sync.Mutex
}

func (n *Node) WithParent(parent *Node) *Node {
	parent.AppendChild(n)
	return n
}

func (n *Node) AppendChild(child *Node) {
	n.mu.Lock()
	n.childs = append(n.childs, child)
	n.mu.Unlock()

	child.mu.Lock()
	child.parents = append(child.parents, n)
	child.mu.Unlock()
}

func (n *Node) Childs() []*Node {
	n.mu.Lock()
	childs := make([]*Node, len(n.childs))
	copy(childs, n.childs)
	n.mu.Unlock()
	return childs
}

func (n *Node) removeParent(parent *Node) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, p := range n.parents {
		if p == parent {
			n.parents = append(n.parents[:i], n.parents[i+1:]...)
			break
		}
	}
	return len(n.parents)
}

func (n *Node) removeChild(child *Node) {
	n.mu.Lock()
	for i, ch := range n.childs {
		if ch == child {
			n.childs = append(n.childs[:i], n.childs[i+1:]...)
			break
		}
	}
	n.mu.Unlock()
}

// Close - detach from parents. Root node also detaches childs,
// and childs without other parents are closed too.
func (n *Node) Close() {
	n.mu.Lock()
	parents := n.parents
	childs := n.childs
	n.parents = nil
	n.childs = nil
	n.mu.Unlock()

	for _, parent := range parents {
		parent.removeChild(n)
	}

	if len(parents) == 0 {
		for _, child := range childs {
			if child.removeParent(n) == 0 {
				child.Close()
			}
		}
	}

	if n.onClose != nil {
		n.onClose()
	}
}
