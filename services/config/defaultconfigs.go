package config

// Embedded configuration, keyed by device ID. Populate at build time via
// code generation or by hand during development.

const cfgTidsDemo = `{
  "hal": {
    "devices": [
      {
        "id": "tids0",
        "type": "wsentids",
        "bus": "i2c0",
        "params": {
          "sample_ms": 1000,
          "high_limit_mc": 60000
        }
      }
    ]
  },
  "telemetry": {
    "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"tids-demo": []byte(cfgTidsDemo),
}
