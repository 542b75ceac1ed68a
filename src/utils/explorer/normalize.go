package explorer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/evmarchive/archiver/src/utils/eth"
	"github.com/evmarchive/archiver/src/utils/sourcify"
	"github.com/evmarchive/archiver/src/utils/tool"
	"github.com/evmarchive/archiver/src/utils/transport"
)

// Explorer payload reshaped into the layout the source repository produces,
// so downstream consumers never care where the contract came from
type Normalized struct {
	ContractName string
	Metadata     *sourcify.Metadata

	// Marshaled form of Metadata, this is what gets archived
	Raw []byte

	Abi     json.RawMessage
	Sources map[string][]byte
}

// Compiler standard JSON input, both the wrapped and the plain variant
// decode into this
type standardInput struct {
	Language string `json:"language"`
	Sources  map[string]struct {
		Content string `json:"content"`
	} `json:"sources"`
	Settings json.RawMessage `json:"settings"`
}

// Explorers serve the source code field in three shapes: compiler standard
// JSON wrapped in an extra pair of braces, plain standard JSON and a flat
// single file. All of them normalize into the same metadata, abi and
// sources triple.
func Normalize(source *SourceCode) (out *Normalized, err error) {
	out = new(Normalized)
	out.ContractName = source.ContractName

	out.Sources, out.Metadata, err = parseSources(source)
	if err != nil {
		return
	}

	if isVerifiedAbi(source.ABI) {
		out.Abi = json.RawMessage(source.ABI)
		out.Metadata.Output.Abi = out.Abi
	}

	out.Raw, err = json.MarshalIndent(out.Metadata, "", "  ")
	if err != nil {
		return nil, &transport.SchemaValidationError{What: "synthesized metadata", Err: err}
	}
	out.Raw = append(out.Raw, '\n')

	return
}

func parseSources(source *SourceCode) (files map[string][]byte, metadata *sourcify.Metadata, err error) {
	metadata = synthesizeMetadata(source)

	code := strings.TrimSpace(source.SourceCode)
	switch {
	case strings.HasPrefix(code, "{{") && strings.HasSuffix(code, "}}"):
		// Standard JSON wrapped in an extra pair of braces
		return decodeStandardInput(code[1:len(code)-1], metadata)
	case tool.IsJSON([]byte(code)) && strings.Contains(code, `"sources"`):
		return decodeStandardInput(code, metadata)
	default:
		// A flat single file, named after the contract
		files = map[string][]byte{
			flatFileName(source): []byte(source.SourceCode),
		}
		fillSourceEntries(metadata, files)
		return
	}
}

func decodeStandardInput(code string, metadata *sourcify.Metadata) (files map[string][]byte, out *sourcify.Metadata, err error) {
	var input standardInput
	err = json.Unmarshal([]byte(code), &input)
	if err != nil {
		return nil, nil, &transport.SchemaValidationError{What: "explorer standard json", Err: err}
	}

	if len(input.Sources) == 0 {
		return nil, nil, &transport.SchemaValidationError{What: "explorer standard json", Err: fmt.Errorf("no sources present")}
	}

	files = make(map[string][]byte, len(input.Sources))
	for path, entry := range input.Sources {
		files[path] = []byte(entry.Content)
	}

	if input.Language != "" {
		metadata.Language = input.Language
	}
	if len(input.Settings) > 0 {
		metadata.Settings = input.Settings
	}
	fillSourceEntries(metadata, files)

	return files, metadata, nil
}

// Explorers do not serve the compiler metadata document, so one is pieced
// together from the fields they do serve
func synthesizeMetadata(source *SourceCode) (metadata *sourcify.Metadata) {
	metadata = new(sourcify.Metadata)
	metadata.Language = detectLanguage(source)
	metadata.Compiler.Version = strings.TrimPrefix(source.CompilerVersion, "v")

	settings := map[string]interface{}{}
	if source.OptimizationUsed != "" {
		optimizer := map[string]interface{}{
			"enabled": source.OptimizationUsed == "1",
		}
		if runs, err := strconv.Atoi(source.Runs); err == nil {
			optimizer["runs"] = runs
		}
		settings["optimizer"] = optimizer
	}
	if source.EVMVersion != "" && !strings.EqualFold(source.EVMVersion, "default") {
		settings["evmVersion"] = source.EVMVersion
	}
	if len(settings) > 0 {
		// Static maps marshal without error
		metadata.Settings, _ = json.Marshal(settings)
	}

	return
}

func fillSourceEntries(metadata *sourcify.Metadata, files map[string][]byte) {
	metadata.Sources = make(map[string]sourcify.SourceEntry, len(files))
	for path, content := range files {
		metadata.Sources[path] = sourcify.SourceEntry{
			Keccak256: eth.Keccak256Hex(content),
			License:   "",
		}
	}
}

func flatFileName(source *SourceCode) string {
	name := source.ContractName
	if name == "" {
		name = "Contract"
	}
	if strings.HasPrefix(source.CompilerVersion, "vyper") {
		return name + ".vy"
	}
	return name + ".sol"
}

func detectLanguage(source *SourceCode) string {
	if strings.HasPrefix(source.CompilerVersion, "vyper") {
		return "Vyper"
	}
	return "Solidity"
}

// Etherscan signals a known but unverified contract with a placeholder ABI
func isVerifiedAbi(abi string) bool {
	return abi != "" && tool.IsJSON([]byte(abi))
}
