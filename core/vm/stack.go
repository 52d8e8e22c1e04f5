package vm

import "math/big"

// StackLimit is the maximum depth of the operand stack.
const StackLimit = 1024

// Stack is the EVM operand stack (max 1024 items, 256-bit words).
// Depth bounds are enforced by the jump table before an operation
// executes, so Push and Pop never check them.
type Stack struct {
	data []*big.Int
}

// NewStack returns a new empty stack.
func NewStack() *Stack {
	return &Stack{data: make([]*big.Int, 0, 16)}
}

// Push pushes a value onto the stack.
func (st *Stack) Push(val *big.Int) {
	st.data = append(st.data, val)
}

// Pop removes and returns the top element.
func (st *Stack) Pop() *big.Int {
	ret := st.data[len(st.data)-1]
	st.data = st.data[:len(st.data)-1]
	return ret
}

// Peek returns the top element without removing it.
func (st *Stack) Peek() *big.Int {
	return st.data[len(st.data)-1]
}

// Back returns the nth element from the top (0-indexed: 0 = top).
func (st *Stack) Back(n int) *big.Int {
	return st.data[len(st.data)-1-n]
}

// Swap swaps the top element with the nth element below it.
func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

// Dup duplicates the nth element from the top and pushes it.
func (st *Stack) Dup(n int) {
	st.data = append(st.data, new(big.Int).Set(st.data[len(st.data)-n]))
}

// Len returns the number of items on the stack.
func (st *Stack) Len() int {
	return len(st.data)
}

// Data returns the underlying stack slice (bottom to top).
func (st *Stack) Data() []*big.Int {
	return st.data
}
