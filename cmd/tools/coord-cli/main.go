package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/annel0/mapcoord/internal/coord"
	"gopkg.in/yaml.v3"
)

// result - общий вывод команд encode/decode/parse
type result struct {
	Mode     string         `json:"mode,omitempty" yaml:"mode,omitempty"`
	Packed   uint32         `json:"packed" yaml:"packed"`
	Hex      string         `json:"hex" yaml:"hex"`
	Position coord.Position `json:"position" yaml:"position"`
	Wrapped  bool           `json:"wrapped,omitempty" yaml:"wrapped,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("coord-cli", flag.ContinueOnError)
	var (
		command = fs.String("cmd", "encode", "Command: encode, decode, domain, parse")
		modeStr = fs.String("mode", "absolute", "Packing mode: absolute, relative")
		posStr  = fs.String("pos", "", "Position x:y:z (encode) or clipboard text (parse)")
		word    = fs.String("word", "", "Packed word, decimal or 0x-hex (decode)")
		strict  = fs.Bool("strict", false, "Reject out-of-domain coordinates instead of wrapping")
		format  = fs.String("format", "text", "Output format: text, json, yaml")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode, err := coord.ParseMode(*modeStr)
	if err != nil {
		return err
	}

	switch *command {
	case "encode":
		pos, err := coord.Parse(*posStr)
		if err != nil {
			return err
		}
		var v coord.Packed
		if *strict {
			if v, err = coord.PackStrict(mode, pos); err != nil {
				return err
			}
		} else {
			v = coord.Pack(mode, pos)
		}
		decoded := coord.Unpack(mode, v)
		return emit(out, *format, result{
			Mode: mode.String(), Packed: uint32(v), Hex: v.String(),
			Position: decoded, Wrapped: decoded != pos,
		})

	case "decode":
		raw, err := parseWord(*word)
		if err != nil {
			return err
		}
		v := coord.Packed(raw)
		return emit(out, *format, result{Mode: mode.String(), Packed: raw, Hex: v.String(), Position: coord.Unpack(mode, v)})

	case "domain":
		return emit(out, *format, coord.DomainOf(mode))

	case "parse":
		pos, found := coord.ParseClipboard(*posStr)
		if !found {
			return fmt.Errorf("текст не содержит позицию: %q", *posStr)
		}
		v := coord.Pack(mode, pos)
		return emit(out, *format, result{Mode: mode.String(), Packed: uint32(v), Hex: v.String(), Position: pos})

	default:
		return fmt.Errorf("неизвестная команда %q (encode, decode, domain, parse)", *command)
	}
}

func parseWord(s string) (uint32, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("нужно указать -word")
	}
	base := 10
	if strings.HasPrefix(s, "0x") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("неверное слово %q: %w", s, err)
	}
	return uint32(v), nil
}

func emit(out io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(v)
	case "text":
	default:
		return fmt.Errorf("неизвестный формат %q", format)
	}

	switch r := v.(type) {
	case result:
		suffix := ""
		if r.Wrapped {
			suffix = " (усечено)"
		}
		_, err := fmt.Fprintf(out, "%s %s = %s%s\n", r.Mode, r.Position, r.Hex, suffix)
		return err
	case coord.Domain:
		_, err := fmt.Fprintf(out, "min %s max %s offset %s\n", r.Min, r.Max, r.Offset)
		return err
	}
	_, err := fmt.Fprintf(out, "%v\n", v)
	return err
}
