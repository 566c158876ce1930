package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrAccessDenied: handle inválido, fechado, ou o processo saiu. Fatal para a sessão.
	ErrAccessDenied = errors.New("access denied")
	// ErrPartialRead: o processo devolveu menos bytes que o pedido.
	ErrPartialRead = errors.New("partial read")
	// ErrOutOfBounds: offset+length passa do tamanho da região. Nenhuma leitura é feita.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrTimeout: a leitura não voltou dentro do timeout configurado.
	ErrTimeout = errors.New("read timeout")
)

// IsTransient diz se o erro deve ser tratado como uma falha passageira
// (tenta de novo no próximo ciclo).
func IsTransient(err error) bool {
	return errors.Is(err, ErrPartialRead) || errors.Is(err, ErrOutOfBounds) || errors.Is(err, ErrTimeout)
}

// Region é um bloco contíguo de memória do processo alvo.
type Region struct {
	Name string
	Base uintptr
	Size int
}

func (r Region) String() string {
	return fmt.Sprintf("%s@0x%X+%d", r.Name, r.Base, r.Size)
}

// Snapshot são os bytes de uma região capturados num único instante.
type Snapshot struct {
	Region Region
	Seq    uint64
	Taken  time.Time
	Bytes  []byte
}

// Backend lê bytes crus de outro processo. Implementações devem devolver
// erros que embrulham ErrAccessDenied ou ErrPartialRead.
type Backend interface {
	ReadAt(addr uintptr, buf []byte) (int, error)
	Close() error
}

// Reader é a camada de acesso à memória: dono exclusivo do handle do processo.
type Reader struct {
	backend Backend
	timeout time.Duration
	closed  atomic.Bool

	// leituras em andamento, por região (nome + base)
	mu       sync.Mutex
	inflight map[regionKey]struct{}

	once     sync.Once
	closeErr error
}

type regionKey struct {
	name string
	base uintptr
}

// NewReader embrulha um backend. timeout <= 0 desliga o limite de tempo.
func NewReader(backend Backend, timeout time.Duration) *Reader {
	return &Reader{backend: backend, timeout: timeout, inflight: make(map[regionKey]struct{})}
}

// begin marca a região como ocupada. Falso se já existe leitura dela em andamento.
func (r *Reader) begin(k regionKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[k]; busy {
		return false
	}
	r.inflight[k] = struct{}{}
	return true
}

func (r *Reader) end(k regionKey) {
	r.mu.Lock()
	delete(r.inflight, k)
	r.mu.Unlock()
}

// busy diz se alguma leitura ainda não voltou do backend.
func (r *Reader) busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight) > 0
}

// Read lê length bytes a partir de region.Base+offset.
func (r *Reader) Read(region Region, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > region.Size {
		return nil, fmt.Errorf("%w: %s offset 0x%X len %d", ErrOutOfBounds, region, offset, length)
	}
	if r.closed.Load() {
		return nil, fmt.Errorf("%w: handle closed", ErrAccessDenied)
	}
	if length == 0 {
		return []byte{}, nil
	}
	// só a região travada falha rápido; as outras seguem lendo
	key := regionKey{name: region.Name, base: region.Base}
	if !r.begin(key) {
		return nil, fmt.Errorf("%w: previous read of %s still in flight", ErrTimeout, region)
	}

	buf := make([]byte, length)
	addr := region.Base + uintptr(offset)

	if r.timeout <= 0 {
		n, err := r.backend.ReadAt(addr, buf)
		r.end(key)
		return finish(region, buf, n, err)
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := r.backend.ReadAt(addr, buf)
		r.end(key)
		done <- result{n, err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return finish(region, buf, res.n, res.err)
	case <-timer.C:
		// a leitura continua e termina sozinha; o buffer é descartado
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, region, r.timeout)
	}
}

func finish(region Region, buf []byte, n int, err error) ([]byte, error) {
	if err != nil {
		if errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrPartialRead) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrPartialRead, region, err)
	}
	if n < len(buf) {
		return nil, fmt.Errorf("%w: %s got %d of %d bytes", ErrPartialRead, region, n, len(buf))
	}
	return buf, nil
}

// Capture lê a região inteira e devolve um Snapshot.
func (r *Reader) Capture(region Region, seq uint64) (Snapshot, error) {
	b, err := r.Read(region, 0, region.Size)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Region: region, Seq: seq, Taken: time.Now(), Bytes: b}, nil
}

// ReadU32 lê 4 bytes little-endian num endereço absoluto
func (r *Reader) ReadU32(addr uintptr) (uint32, error) {
	b, err := r.Read(Region{Name: "ptr", Base: addr, Size: 4}, 0, 4)
	if err != nil {
		return 0, err
	}
	return BytesToUint32(b), nil
}

// ReadPointer segue um ponteiro de 32 bits (o jogo é um binário x86).
func (r *Reader) ReadPointer(addr uintptr) (uintptr, error) {
	p, err := r.ReadU32(addr)
	if err != nil {
		return 0, err
	}
	if !IsValidPtr(p) {
		return 0, fmt.Errorf("%w: invalid pointer 0x%X at 0x%X", ErrPartialRead, p, addr)
	}
	return uintptr(p), nil
}

// Close libera o handle. Espera as leituras em andamento terminarem (no máximo
// o timeout) antes de fechar. Chamadas repetidas são seguras.
func (r *Reader) Close() error {
	r.once.Do(func() {
		r.closed.Store(true)
		deadline := time.Now().Add(r.timeout)
		for r.busy() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		r.closeErr = r.backend.Close()
	})
	return r.closeErr
}

// IsValidPtr verifica se um ponteiro é válido
func IsValidPtr(ptr uint32) bool {
	return ptr > 0x10000 && ptr < 0x7FFFFFFF
}

// BytesToUint32 converte bytes para uint32
func BytesToUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// BytesToFloat32 converte bytes para float32
func BytesToFloat32(b []byte) float32 {
	if len(b) < 4 {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
