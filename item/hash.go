package item

// Hash is a 64-bit digest derived deterministically from an item path,
// optionally combined with a type parameter hash. Per spec.md §3, hash
// collisions are treated as a programming bug, not a runtime condition:
// nothing in this package attempts to detect or recover from one.
type Hash uint64

// EMPTY is the neutral parameter hash used when an item has no generic
// parameters to mix in.
const EMPTY Hash = 0

// role tags folded into the digest so that e.g. a free function and an
// instance method named the same thing never collide.
const (
	roleFunction   Hash = 0x9E3779B97F4A7C15
	roleInstanceFn Hash = 0xC2B2AE3D27D4EB4F
	roleType       Hash = 0xFF51AFD7ED558CCD
	roleEmpty      Hash = 0xC4CEB9FE1A85EC53

	fnvOffset Hash = 0xCBF29CE484222325
	fnvPrime  Hash = 0x100000001B3
)

func foldString(h Hash, s string) Hash {
	for i := 0; i < len(s); i++ {
		h ^= Hash(s[i])
		h *= fnvPrime
	}
	return h
}

func foldUint32(h Hash, v uint32) Hash {
	for i := 0; i < 4; i++ {
		h ^= Hash(byte(v >> (8 * i)))
		h *= fnvPrime
	}
	return h
}

func foldComponent(h Hash, c Component) Hash {
	switch {
	case c.IsCrate:
		return foldString(h, "\x00crate")
	case c.Synth != 0:
		h = foldString(h, "\x00synth")
		return foldUint32(h, c.Synth)
	default:
		return foldString(h, c.Name)
	}
}

// foldPath folds every component of path into the running digest, starting
// from the fixed seed fnvOffset, the deterministic basis spec.md §3 calls
// for.
func foldPath(path Path) Hash {
	h := fnvOffset
	for _, c := range path {
		h = foldComponent(h, c)
	}
	return h
}

// combine mixes a role tag and a parameter hash into a path digest. Order
// matters (role, then params) so the two never produce the same stream of
// folds as a differently-shaped path.
func combine(h Hash, role Hash, params Hash) Hash {
	h ^= role
	h *= fnvPrime
	h ^= params
	h *= fnvPrime
	if params == EMPTY {
		h ^= roleEmpty
		h *= fnvPrime
	}
	return h
}

// GlobalFn returns the hash used to call a free function by item path,
// with params identifying any generic type arguments (EMPTY if none).
func GlobalFn(path Path, params Hash) Hash {
	return combine(foldPath(path), roleFunction, params)
}

// InstanceFn returns the hash used for instance dispatch: (receiver type
// hash, method name). This is the key the VM's CallInstance opcode looks
// up via instance_fn(type_hash, name).
func InstanceFn(typeHash Hash, name string) Hash {
	h := typeHash
	h ^= roleInstanceFn
	h *= fnvPrime
	h = foldString(h, name)
	return h
}

// TypeHash returns the hash identifying a type by its item path.
func TypeHash(path Path, params Hash) Hash {
	return combine(foldPath(path), roleType, params)
}
