package wasmhost

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"time"

	extism "github.com/extism/go-sdk"
	"github.com/tetratelabs/wazero/api"
)

// buildHostFunctions registers the fixed set of host calls every plugin
// gets regardless of scopes: send_main_command (the HostCallRouter
// dispatch entry point), system_time, the three socket primitives, and
// hash. This is the Go shape of the Extism PDK's extern "C" host imports
// declared in original_source/core/extensions/src/context/extism_context.rs.
func (r *Runtime) buildHostFunctions(fns HostFunctionSet) []extism.HostFunction {
	sendMainCommand := extism.NewHostFunctionWithStack(
		"send_main_command",
		func(ctx_ extism.CurrentPlugin, stack []uint64) {
			mem, err := ctx_.ReadBytes(stack[0])
			if err != nil {
				stack[0] = 0
				return
			}
			out := fns.SendMainCommand(r.Package, mem)
			ptr, err := ctx_.WriteBytes(out)
			if err != nil {
				stack[0] = 0
				return
			}
			stack[0] = ptr
		},
		[]api.ValueType{api.ValueTypeI64},
		[]api.ValueType{api.ValueTypeI64},
	)
	sendMainCommand.SetNamespace("env")

	systemTime := extism.NewHostFunctionWithStack(
		"system_time",
		func(ctx_ extism.CurrentPlugin, stack []uint64) {
			stack[0] = uint64(time.Now().Unix())
		},
		[]api.ValueType{},
		[]api.ValueType{api.ValueTypeI64},
	)
	systemTime.SetNamespace("env")

	openClientFD := extism.NewHostFunctionWithStack(
		"open_clientfd",
		func(ctx_ extism.CurrentPlugin, stack []uint64) {
			path, err := ctx_.ReadBytes(stack[0])
			if err != nil {
				stack[0] = uint64(int32(-1))
				return
			}
			stack[0] = uint64(uint32(int32(r.broker.Open(string(path)))))
		},
		[]api.ValueType{api.ValueTypeI64},
		[]api.ValueType{api.ValueTypeI32},
	)
	openClientFD.SetNamespace("env")

	readSock := extism.NewHostFunctionWithStack(
		"read_sock",
		func(ctx_ extism.CurrentPlugin, stack []uint64) {
			handle := int(int32(stack[0]))
			maxLen := int(int32(stack[1]))
			data := r.broker.Read(handle, maxLen)
			ptr, err := ctx_.WriteBytes(data)
			if err != nil {
				stack[0] = 0
				return
			}
			stack[0] = ptr
		},
		[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		[]api.ValueType{api.ValueTypeI64},
	)
	readSock.SetNamespace("env")

	writeSock := extism.NewHostFunctionWithStack(
		"write_sock",
		func(ctx_ extism.CurrentPlugin, stack []uint64) {
			handle := int(int32(stack[0]))
			data, err := ctx_.ReadBytes(stack[1])
			if err != nil {
				stack[0] = 0
				return
			}
			ok := r.broker.Write(handle, data)
			if ok {
				stack[0] = 1
			} else {
				stack[0] = 0
			}
		},
		[]api.ValueType{api.ValueTypeI32, api.ValueTypeI64},
		[]api.ValueType{api.ValueTypeI32},
	)
	writeSock.SetNamespace("env")

	hash := extism.NewHostFunctionWithStack(
		"hash",
		func(ctx_ extism.CurrentPlugin, stack []uint64) {
			algo, err := ctx_.ReadBytes(stack[0])
			if err != nil {
				stack[0] = 0
				return
			}
			data, err := ctx_.ReadBytes(stack[1])
			if err != nil {
				stack[0] = 0
				return
			}
			digest := hashBytes(string(algo), data)
			ptr, err := ctx_.WriteBytes(digest)
			if err != nil {
				stack[0] = 0
				return
			}
			stack[0] = ptr
		},
		[]api.ValueType{api.ValueTypeI64, api.ValueTypeI64},
		[]api.ValueType{api.ValueTypeI64},
	)
	hash.SetNamespace("env")

	return []extism.HostFunction{sendMainCommand, systemTime, openClientFD, readSock, writeSock, hash}
}

// hashBytes implements §4.3's hash(algo, bytes): SHA-1, SHA-256, SHA-512;
// anything else falls back to SHA-1.
func hashBytes(algo string, data []byte) []byte {
	switch algo {
	case "sha256", "SHA-256":
		sum := sha256.Sum256(data)
		return sum[:]
	case "sha512", "SHA-512":
		sum := sha512.Sum512(data)
		return sum[:]
	default:
		sum := sha1.Sum(data)
		return sum[:]
	}
}
