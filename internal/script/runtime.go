package script

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"rpcprovider/internal/ethereum"
)

// newRuntime creates a goja VM with console and helper bindings
func newRuntime(logger zerolog.Logger) *goja.Runtime {
	vm := goja.New()
	setupConsole(vm, logger)
	setupHelpers(vm)
	return vm
}

func setupConsole(vm *goja.Runtime, logger zerolog.Logger) {
	console := vm.NewObject()

	levels := map[string]zerolog.Level{
		"log":   zerolog.InfoLevel,
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	}
	for name, level := range levels {
		level := level
		console.Set(name, func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			logger.WithLevel(level).Msgf("[script] %v", args)
			return goja.Undefined()
		})
	}

	vm.Set("console", console)
}

func setupHelpers(vm *goja.Runtime) {
	// keccak256 hashes a 0x hex string as bytes, anything else as UTF-8
	vm.Set("keccak256", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(vm.ToValue("keccak256 requires 1 argument"))
		}
		s := call.Arguments[0].String()

		var data []byte
		if strings.HasPrefix(s, "0x") {
			var err error
			data, err = hex.DecodeString(s[2:])
			if err != nil {
				panic(vm.ToValue(fmt.Sprintf("invalid hex string: %v", err)))
			}
		} else {
			data = []byte(s)
		}
		return vm.ToValue("0x" + hex.EncodeToString(ethereum.Keccak256(data)))
	})

	vm.Set("toChecksumAddress", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(vm.ToValue("toChecksumAddress requires 1 argument"))
		}
		sum, err := ethereum.ChecksumAddress(call.Arguments[0].String())
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(sum)
	})
}
