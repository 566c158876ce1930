package memory

import (
	"fmt"
	"sort"
	"sync"
)

// Fake é um backend em memória: segmentos mapeados em endereços absolutos.
// Usado nos testes e no replay de dumps.
type Fake struct {
	mu       sync.Mutex
	segments map[uintptr][]byte
	exited   bool
	reads    int
	failNext error
}

func NewFake() *Fake {
	return &Fake{segments: make(map[uintptr][]byte)}
}

// Map coloca uma cópia de data no endereço base.
func (f *Fake) Map(base uintptr, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments[base] = append([]byte(nil), data...)
}

// Write sobrescreve bytes de um segmento já mapeado.
func (f *Fake) Write(addr uintptr, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base, seg, ok := f.find(addr)
	if !ok {
		panic(fmt.Sprintf("memory.Fake: write to unmapped 0x%X", addr))
	}
	copy(seg[addr-base:], data)
}

// Exit simula a saída do processo alvo.
func (f *Fake) Exit() {
	f.mu.Lock()
	f.exited = true
	f.mu.Unlock()
}

// FailNext faz a próxima leitura devolver err.
func (f *Fake) FailNext(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

// Reads conta quantas leituras chegaram ao backend.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *Fake) find(addr uintptr) (uintptr, []byte, bool) {
	bases := make([]uintptr, 0, len(f.segments))
	for b := range f.segments {
		bases = append(bases, b)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	for _, b := range bases {
		seg := f.segments[b]
		if addr >= b && addr < b+uintptr(len(seg)) {
			return b, seg, true
		}
	}
	return 0, nil, false
}

func (f *Fake) ReadAt(addr uintptr, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.exited {
		return 0, fmt.Errorf("%w: process exited", ErrAccessDenied)
	}
	if err := f.failNext; err != nil {
		f.failNext = nil
		return 0, err
	}
	base, seg, ok := f.find(addr)
	if !ok {
		return 0, fmt.Errorf("%w: 0x%X not mapped", ErrPartialRead, addr)
	}
	return copy(buf, seg[addr-base:]), nil
}

func (f *Fake) Close() error { return nil }
