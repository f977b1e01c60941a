package lnwire

import (
	"bytes"
	"fmt"
)

// packShutdownScript concatenates the upfront shutdown script (if any) as a
// length-prefixed TLV-adjacent field with the remainder of the extra opaque
// data tail, the shape OpenChannel/AcceptChannel use per BOLT-2's optional
// upfront_shutdown_script extension.
func packShutdownScript(script []byte, extra ExtraOpaqueData) ([]byte, error) {
	if len(script) == 0 && len(extra) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := WriteVarBytes(&buf, script); err != nil {
		return nil, err
	}
	buf.Write(extra)

	return buf.Bytes(), nil
}

// parseShutdownScript reverses packShutdownScript: if no TLV tail is
// present, there is no shutdown script. Otherwise the script is mandatory
// (though it may be zero-length), followed by any remaining opaque data.
func parseShutdownScript(data []byte) ([]byte, ExtraOpaqueData, error) {
	if len(data) == 0 {
		return nil, nil, nil
	}

	if len(data) < 2 {
		return nil, nil, fmt.Errorf("truncated upfront shutdown script field")
	}

	r := bytes.NewReader(data)
	script, err := ReadVarBytes(r)
	if err != nil {
		return nil, nil, err
	}

	rest := make([]byte, r.Len())
	if _, err := r.Read(rest); err != nil && len(rest) > 0 {
		return nil, nil, err
	}

	return script, rest, nil
}
