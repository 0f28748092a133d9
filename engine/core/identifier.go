package core

import "fmt"

// IDPool hands out small integer identifiers, reusing released slots before
// growing. The zero value is ready to use.
type IDPool struct {
	owners []interface{}
}

func (p *IDPool) Acquire(owner interface{}) uint32 {
	length := uint32(len(p.owners))
	for i := uint32(0); i < length; i++ {
		// Existing free spot. Take it.
		if p.owners[i] == nil {
			p.owners[i] = owner
			return i
		}
	}

	// No free slot, push a new one. The id is length - 1.
	p.owners = append(p.owners, owner)
	return uint32(len(p.owners)) - 1
}

func (p *IDPool) Release(id uint32) error {
	if len(p.owners) == 0 {
		return fmt.Errorf("id pool release called before any acquire. Nothing was done")
	}
	length := uint32(len(p.owners))
	if id >= length {
		return fmt.Errorf("id pool release: id '%d' out of range (max=%d). Nothing was done", id, length-1)
	}
	if p.owners[id] == nil {
		return fmt.Errorf("id pool release: id '%d' is not in use. Nothing was done", id)
	}
	p.owners[id] = nil
	return nil
}

// Owner returns the value registered for id, or nil when the slot is free.
func (p *IDPool) Owner(id uint32) interface{} {
	if id >= uint32(len(p.owners)) {
		return nil
	}
	return p.owners[id]
}

// InUse counts acquired slots.
func (p *IDPool) InUse() int {
	n := 0
	for _, o := range p.owners {
		if o != nil {
			n++
		}
	}
	return n
}
