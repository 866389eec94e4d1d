package qfragile

const (
	// CNOTEntanglementStrength is the strength of a link created or refreshed by CNOT.
	CNOTEntanglementStrength = 0.8
	// EntanglementDecay scales how much of the coherence loss a link absorbs per tick.
	EntanglementDecay = 0.3
	// EntanglementThreshold is the strength at or below which a link is dropped.
	EntanglementThreshold = 0.1
)

/*
Entanglement is one half of a symmetric link. Whenever qubit A holds a link to B,
B holds a link to A with the same strength and decay rate; every function in this
file that touches a link touches both halves.
*/
type Entanglement struct {
	QubitID   string  `msgpack:"qubit_id"`
	Strength  float64 `msgpack:"strength"`
	DecayRate float64 `msgpack:"decay_rate"`
}

// Link is a qubit pair seen from outside, used in results and visual updates.
type Link struct {
	A        string  `msgpack:"a"`
	B        string  `msgpack:"b"`
	Strength float64 `msgpack:"strength"`
}

// EntangledWith returns the link to the given qubit, if any.
func (q Qubit) EntangledWith(id string) (Entanglement, bool) {
	for _, e := range q.Entanglements {
		if e.QubitID == id {
			return e, true
		}
	}
	return Entanglement{}, false
}

/*
entangle creates or refreshes the link between qubits[a] and qubits[b] in place.
It reports whether the link is new. Self links are refused.
*/
func entangle(qubits []Qubit, a, b int, strength float64) bool {
	if a == b {
		return false
	}
	_, existed := qubits[a].EntangledWith(qubits[b].ID)
	setLink(&qubits[a], qubits[b].ID, strength)
	setLink(&qubits[b], qubits[a].ID, strength)
	return !existed
}

func setLink(q *Qubit, partner string, strength float64) {
	for i := range q.Entanglements {
		if q.Entanglements[i].QubitID == partner {
			q.Entanglements[i].Strength = strength
			q.Entanglements[i].DecayRate = EntanglementDecay
			return
		}
	}
	q.Entanglements = append(q.Entanglements, Entanglement{
		QubitID:   partner,
		Strength:  strength,
		DecayRate: EntanglementDecay,
	})
}

func removeLink(q *Qubit, partner string) {
	for i := range q.Entanglements {
		if q.Entanglements[i].QubitID == partner {
			q.Entanglements = append(q.Entanglements[:i], q.Entanglements[i+1:]...)
			return
		}
	}
}

// disentangleAll strips every link of qubits[i] and the matching half on each partner.
func disentangleAll(qubits []Qubit, i int) []Link {
	var broken []Link
	for _, e := range qubits[i].Entanglements {
		broken = append(broken, Link{A: qubits[i].ID, B: e.QubitID, Strength: e.Strength})
		if j := indexOfQubit(qubits, e.QubitID); j >= 0 {
			removeLink(&qubits[j], qubits[i].ID)
		}
	}
	qubits[i].Entanglements = nil
	return broken
}

// links lists every pair once, with the lower index first.
func links(qubits []Qubit) []Link {
	var out []Link
	for i, q := range qubits {
		for _, e := range q.Entanglements {
			j := indexOfQubit(qubits, e.QubitID)
			if j > i {
				out = append(out, Link{A: q.ID, B: e.QubitID, Strength: e.Strength})
			}
		}
	}
	return out
}

func indexOfQubit(qubits []Qubit, id string) int {
	for i := range qubits {
		if qubits[i].ID == id {
			return i
		}
	}
	return -1
}
