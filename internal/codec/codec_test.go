package codec

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/crealink/crealink/internal/printererr"
)

// unwire decodes an encoded frame back into its envelope parts so tests can
// compare semantics without depending on key order.
func unwire(t *testing.T, frame []byte) (method string, params map[string]any) {
	t.Helper()
	var env struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if err := json.Unmarshal(env.Params, &params); err != nil {
		t.Fatalf("params is not a JSON object: %v", err)
	}
	return env.Method, params
}

func TestEncode_CommandShapes(t *testing.T) {
	tests := []struct {
		name       string
		req        CommandRequest
		wantMethod string
		wantKey    string
		wantValue  any
	}{
		{"restart firmware", RestartFirmware(), "set", "restartFirmware", float64(1)},
		{"recover resume", RecoverAfterPowerLoss(true), "set", "repoPlrStatus", float64(1)},
		{"recover cancel", RecoverAfterPowerLoss(false), "set", "repoPlrStatus", float64(0)},
		{"file list", RequestFileList(), "get", "reqGcodeFile", float64(1)},
		{"probed matrix", RequestProbedMatrix(), "get", "reqProbedMatrix", float64(1)},
		{"clear matrix", ClearProbedMatrix(), "set", "rmProbedMatrix", float64(1)},
		{"printer params", RequestPrinterParams(), "get", "ReqPrinterPara", float64(1)},
		{"home one axis", HomeAxes("X"), "set", "autohome", "X"},
		{"home two axes space-joined", HomeAxes("X Y"), "set", "autohome", "X Y"},
		{"case fan numeric string", SetCaseFan(80), "set", "fanCase", "80"},
		{"light on", SetLight(true), "set", "lightSw", "1"},
		{"light off", SetLight(false), "set", "lightSw", "0"},
		{"bed temp nested", SetBedTemp(0, 60), "set", "bedTempControl",
			map[string]any{"num": float64(0), "val": float64(60)}},
		{"delete file compound", DeleteFile("local", "benchy.gcode"), "set", "opGcodeFile", "deleteprt:local/benchy.gcode"},
		{"print file compound", PrintFile("local", "benchy.gcode"), "set", "opGcodeFile", "printprt:local/benchy.gcode"},
		{"z offset explicit plus", SetZOffset(0.05), "set", "setZOffset", "+0.05"},
		{"z offset minus", SetZOffset(-0.1), "set", "setZOffset", "-0.10"},
		{"move axis with feedrate", MoveAxis("Y", 10), "set", "setPosition", "Y10 F3000"},
		{"move axis negative", MoveAxis("Z", -0.5), "set", "setPosition", "Z-0.5 F3000"},
		{"stop", Stop(), "set", "stop", float64(1)},
		{"resume via stop", Resume(), "set", "stop", float64(0)},
		{"pause", Pause(true), "set", "pause", float64(1)},
		{"unpause", Pause(false), "set", "pause", float64(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.req)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			method, params := unwire(t, frame)
			if method != tt.wantMethod {
				t.Errorf("method = %q, want %q", method, tt.wantMethod)
			}
			if len(params) != 1 {
				t.Fatalf("params has %d keys, want exactly 1: %v", len(params), params)
			}
			got, ok := params[tt.wantKey]
			if !ok {
				t.Fatalf("params missing key %q: %v", tt.wantKey, params)
			}
			if !reflect.DeepEqual(got, tt.wantValue) {
				t.Errorf("params[%q] = %#v, want %#v", tt.wantKey, got, tt.wantValue)
			}
		})
	}
}

func TestEncode_RequestIDsAreUnique(t *testing.T) {
	a := Stop()
	b := Stop()
	if a.ID == b.ID {
		t.Error("two requests share an ID")
	}
}

func TestDecode_PartialStatusFrame(t *testing.T) {
	events, err := Decode([]byte(`{"printProgress":42,"layer":10,"TotalLayer":100}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	// Events come back in sorted key order.
	wantKeys := []string{"TotalLayer", "layer", "printProgress"}
	for i, k := range wantKeys {
		if events[i].Key != k {
			t.Errorf("events[%d].Key = %q, want %q", i, events[i].Key, k)
		}
	}
	if events[2].Value != json.Number("42") {
		t.Errorf("printProgress value = %#v, want json.Number(\"42\")", events[2].Value)
	}
}

func TestDecode_UnknownKeysPreserved(t *testing.T) {
	events, err := Decode([]byte(`{"futureField":{"a":1},"nozzleTemp":200}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	var sawFuture bool
	for _, ev := range events {
		if ev.Key == "futureField" {
			sawFuture = true
		}
	}
	if !sawFuture {
		t.Error("unknown key was dropped by Decode")
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	tests := []string{
		`{"unterminated":`,
		`not json at all`,
		``,
		`[1,2,3]`, // valid JSON but not an object
	}
	for _, raw := range tests {
		_, err := Decode([]byte(raw))
		if err == nil {
			t.Errorf("Decode(%q) should fail", raw)
			continue
		}
		if !printererr.IsCode(err, printererr.CodeMalformedMessage) {
			t.Errorf("Decode(%q) error code = %q, want %q", raw, printererr.GetCode(err), printererr.CodeMalformedMessage)
		}
	}
}

// TestDecodeEncode_SemanticRoundTrip verifies that decoding an encoded
// command yields an event whose key and value match the original request's
// parameters for every documented command.
func TestDecodeEncode_SemanticRoundTrip(t *testing.T) {
	reqs := []CommandRequest{
		RestartFirmware(),
		RecoverAfterPowerLoss(true),
		RecoverAfterPowerLoss(false),
		RequestFileList(),
		RequestProbedMatrix(),
		ClearProbedMatrix(),
		RequestPrinterParams(),
		HomeAxes("X Y"),
		SetCaseFan(55),
		SetLight(true),
		SetBedTemp(1, 70),
		DeleteFile("sd", "part.gcode"),
		PrintFile("sd", "part.gcode"),
		SetZOffset(-0.25),
		MoveAxis("X", 5),
		Stop(),
		Resume(),
		Pause(true),
	}

	for _, req := range reqs {
		t.Run(req.Name, func(t *testing.T) {
			frame, err := Encode(req)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}

			// The envelope itself decodes as a frame with method/params keys.
			events, err := Decode(frame)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}

			var params map[string]any
			for _, ev := range events {
				if ev.Key == "params" {
					params, _ = ev.Value.(map[string]any)
				}
			}
			if params == nil {
				t.Fatal("decoded frame has no params object")
			}

			got, ok := params[req.Key]
			if !ok {
				t.Fatalf("params missing key %q", req.Key)
			}

			// Compare semantically: numbers decode as json.Number, nested
			// structs as maps.
			switch want := req.Value.(type) {
			case int:
				n, ok := got.(json.Number)
				if !ok {
					t.Fatalf("value = %#v, want a number", got)
				}
				if v, _ := n.Int64(); int(v) != want {
					t.Errorf("value = %v, want %d", n, want)
				}
			case string:
				if got != want {
					t.Errorf("value = %#v, want %q", got, want)
				}
			case bedTempParams:
				m, ok := got.(map[string]any)
				if !ok {
					t.Fatalf("value = %#v, want an object", got)
				}
				num, _ := m["num"].(json.Number)
				val, _ := m["val"].(json.Number)
				if n, _ := num.Int64(); int(n) != want.Num {
					t.Errorf("num = %v, want %d", num, want.Num)
				}
				if v, _ := val.Int64(); int(v) != want.Val {
					t.Errorf("val = %v, want %d", val, want.Val)
				}
			default:
				t.Fatalf("unhandled request value type %T", req.Value)
			}
		})
	}
}
