package proof

import (
	"bytes"
	"fmt"
	"io"

	"github.com/consensys/gnark/backend/groth16"

	"github.com/PolyhedraZK/ProvableVM/circuit"
	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/utils"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// File headers. Every artifact is
//
//	magic u64 | body length u64 | body
//
// and gnark objects inside a body are length-prefixed, since their own
// decoders may read ahead.
const (
	magicProvingKey   uint64 = 0x0131_4b50_4d56_5050 // "PPVMPK1\x01" little endian
	magicVerifyingKey uint64 = 0x0131_4b56_4d56_5050
	magicProof        uint64 = 0x0131_4650_4d56_5050

	headerSize = 16
	maxBody    = 1 << 34
)

type gnarkObject interface {
	io.WriterTo
	io.ReaderFrom
}

func appendObject(o *utils.OutputBuf, obj io.WriterTo) error {
	var buf bytes.Buffer
	if _, err := obj.WriteTo(&buf); err != nil {
		return err
	}
	o.AppendBytes(buf.Bytes())
	return nil
}

func readObject(in *utils.InputBuf, obj gnarkObject) error {
	b := in.ReadBytes()
	if err := in.Err(); err != nil {
		return err
	}
	_, err := obj.ReadFrom(bytes.NewReader(b))
	return err
}

func appendConfig(o *utils.OutputBuf, cfg vm.Config) {
	o.AppendUint64(uint64(cfg.MaxSteps))
	o.AppendUint64(uint64(cfg.MaxProgramLen))
	o.AppendUint64(uint64(cfg.StackDepth))
	o.AppendUint64(uint64(cfg.MemorySize))
}

func readConfig(in *utils.InputBuf) (vm.Config, error) {
	var v [4]uint64
	for i := range v {
		v[i] = in.ReadUint64()
		if v[i] > 1<<24 {
			return vm.Config{}, fmt.Errorf("%w: shape dimension %d", ErrMalformed, v[i])
		}
	}
	if err := in.Err(); err != nil {
		return vm.Config{}, err
	}
	cfg := vm.Config{MaxSteps: int(v[0]), MaxProgramLen: int(v[1]), StackDepth: int(v[2]), MemorySize: int(v[3])}
	if err := cfg.Validate(); err != nil {
		return vm.Config{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return cfg, nil
}

func frame(magic uint64, body []byte) []byte {
	o := utils.OutputBuf{}
	o.AppendUint64(magic)
	o.AppendBytes(body)
	return o.Bytes()
}

func writeFramed(w io.Writer, magic uint64, body []byte) (int64, error) {
	n, err := w.Write(frame(magic, body))
	return int64(n), err
}

func readHeader(head []byte, magic uint64) (uint64, error) {
	in := utils.NewInputBuf(head)
	if got := in.ReadUint64(); got != magic {
		return 0, fmt.Errorf("%w: bad header %#x", ErrMalformed, got)
	}
	size := in.ReadUint64()
	if size > maxBody {
		return 0, fmt.Errorf("%w: body of %d bytes", ErrMalformed, size)
	}
	return size, nil
}

// readFramed never trusts the declared length for allocation: the body
// grows only as bytes actually arrive.
func readFramed(r io.Reader, magic uint64) ([]byte, int64, error) {
	var head [headerSize]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil {
		return nil, int64(n), fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	size, err := readHeader(head[:], magic)
	if err != nil {
		return nil, int64(n), err
	}
	var body bytes.Buffer
	m, err := io.CopyN(&body, r, int64(size))
	if err != nil {
		return nil, int64(n) + m, fmt.Errorf("%w: body: %v", ErrMalformed, err)
	}
	return body.Bytes(), int64(n) + m, nil
}

func unframe(data []byte, magic uint64) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d byte artifact", ErrMalformed, len(data))
	}
	size, err := readHeader(data[:headerSize], magic)
	if err != nil {
		return nil, err
	}
	rest := uint64(len(data) - headerSize)
	if size > rest {
		return nil, fmt.Errorf("%w: body of %d bytes, %d present", ErrMalformed, size, rest)
	}
	if size < rest {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, rest-size)
	}
	return data[headerSize:], nil
}

func (pk *ProvingKey) body() ([]byte, error) {
	if !pk.ready() {
		return nil, ErrKeysNotReady
	}
	o := utils.OutputBuf{}
	appendConfig(&o, pk.Config)
	o.AppendFixedBytes(pk.fingerprint[:])
	if err := appendObject(&o, pk.ccs); err != nil {
		return nil, fmt.Errorf("serialize constraint system: %w", err)
	}
	if err := appendObject(&o, pk.pk); err != nil {
		return nil, fmt.Errorf("serialize proving key: %w", err)
	}
	return o.Bytes(), nil
}

func (pk *ProvingKey) parse(body []byte) error {
	in := utils.NewInputBuf(body)
	cfg, err := readConfig(in)
	if err != nil {
		return err
	}
	var fp [32]byte
	copy(fp[:], in.ReadFixedBytes(32))
	ccs := groth16.NewCS(field.CurveID)
	if err := readObject(in, ccs); err != nil {
		return fmt.Errorf("%w: constraint system: %v", ErrMalformed, err)
	}
	key := groth16.NewProvingKey(field.CurveID)
	if err := readObject(in, key); err != nil {
		return fmt.Errorf("%w: proving key: %v", ErrMalformed, err)
	}
	if !in.IsEnd() {
		return fmt.Errorf("%w: trailing bytes in proving key", ErrMalformed)
	}
	*pk = ProvingKey{Config: cfg, ccs: ccs, pk: key, fingerprint: fp}
	return nil
}

func (pk *ProvingKey) MarshalBinary() ([]byte, error) {
	b, err := pk.body()
	if err != nil {
		return nil, err
	}
	return frame(magicProvingKey, b), nil
}

func (pk *ProvingKey) UnmarshalBinary(data []byte) error {
	body, err := unframe(data, magicProvingKey)
	if err != nil {
		return err
	}
	return pk.parse(body)
}

func (pk *ProvingKey) WriteTo(w io.Writer) (int64, error) {
	b, err := pk.body()
	if err != nil {
		return 0, err
	}
	return writeFramed(w, magicProvingKey, b)
}

func (pk *ProvingKey) ReadFrom(r io.Reader) (int64, error) {
	body, n, err := readFramed(r, magicProvingKey)
	if err != nil {
		return n, err
	}
	return n, pk.parse(body)
}

func (vk *VerifyingKey) body() ([]byte, error) {
	if !vk.ready() {
		return nil, ErrKeysNotReady
	}
	o := utils.OutputBuf{}
	appendConfig(&o, vk.Config)
	if err := appendObject(&o, vk.vk); err != nil {
		return nil, fmt.Errorf("serialize verifying key: %w", err)
	}
	return o.Bytes(), nil
}

func (vk *VerifyingKey) parse(body []byte) error {
	in := utils.NewInputBuf(body)
	cfg, err := readConfig(in)
	if err != nil {
		return err
	}
	key := groth16.NewVerifyingKey(field.CurveID)
	if err := readObject(in, key); err != nil {
		return fmt.Errorf("%w: verifying key: %v", ErrMalformed, err)
	}
	if !in.IsEnd() {
		return fmt.Errorf("%w: trailing bytes in verifying key", ErrMalformed)
	}
	fp, err := fingerprint(key)
	if err != nil {
		return err
	}
	*vk = VerifyingKey{Config: cfg, vk: key, fingerprint: fp}
	return nil
}

func (vk *VerifyingKey) MarshalBinary() ([]byte, error) {
	b, err := vk.body()
	if err != nil {
		return nil, err
	}
	return frame(magicVerifyingKey, b), nil
}

func (vk *VerifyingKey) UnmarshalBinary(data []byte) error {
	body, err := unframe(data, magicVerifyingKey)
	if err != nil {
		return err
	}
	return vk.parse(body)
}

func (vk *VerifyingKey) WriteTo(w io.Writer) (int64, error) {
	b, err := vk.body()
	if err != nil {
		return 0, err
	}
	return writeFramed(w, magicVerifyingKey, b)
}

func (vk *VerifyingKey) ReadFrom(r io.Reader) (int64, error) {
	body, n, err := readFramed(r, magicVerifyingKey)
	if err != nil {
		return n, err
	}
	return n, vk.parse(body)
}

func (p *Proof) body() ([]byte, error) {
	if p.proof == nil {
		return nil, fmt.Errorf("%w: empty proof", ErrMalformed)
	}
	o := utils.OutputBuf{}
	appendConfig(&o, p.Config)
	o.AppendFixedBytes(p.VKFingerprint[:])
	p.Public.Serialize(&o)
	if err := appendObject(&o, p.proof); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}
	return o.Bytes(), nil
}

func (p *Proof) parse(body []byte) error {
	in := utils.NewInputBuf(body)
	cfg, err := readConfig(in)
	if err != nil {
		return err
	}
	var fp [32]byte
	copy(fp[:], in.ReadFixedBytes(32))
	public := circuit.DeserializePublicInputs(in)
	if err := in.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	gp := groth16.NewProof(field.CurveID)
	if err := readObject(in, gp); err != nil {
		return fmt.Errorf("%w: groth16 proof: %v", ErrMalformed, err)
	}
	if !in.IsEnd() {
		return fmt.Errorf("%w: trailing bytes in proof", ErrMalformed)
	}
	*p = Proof{Config: cfg, VKFingerprint: fp, Public: public, proof: gp}
	return nil
}

func (p *Proof) MarshalBinary() ([]byte, error) {
	b, err := p.body()
	if err != nil {
		return nil, err
	}
	return frame(magicProof, b), nil
}

func (p *Proof) UnmarshalBinary(data []byte) error {
	body, err := unframe(data, magicProof)
	if err != nil {
		return err
	}
	return p.parse(body)
}

func (p *Proof) WriteTo(w io.Writer) (int64, error) {
	b, err := p.body()
	if err != nil {
		return 0, err
	}
	return writeFramed(w, magicProof, b)
}

func (p *Proof) ReadFrom(r io.Reader) (int64, error) {
	body, n, err := readFramed(r, magicProof)
	if err != nil {
		return n, err
	}
	return n, p.parse(body)
}
