package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	logOnce sync.Once
	logOut  *log.Logger
)

// Logger returns the process-wide line logger. Output is one JSON object per
// line on stdout; callers marshal their own payloads.
func Logger() *log.Logger {
	logOnce.Do(func() {
		logOut = log.New(os.Stdout, "", 0)
	})
	return logOut
}

// LogRequest marshals entry and writes it as a single line.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Printf(`{"level":"error","msg":"dropping unloggable entry","error":%q}`, err.Error())
		return
	}
	Logger().Println(string(data))
}
