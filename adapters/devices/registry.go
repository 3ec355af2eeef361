package devices

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/lumenlabs/lumen-server/domain/entities"
	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// InMemoryRegistry is a development device registry. Devices come from
// the LUMEN_DEVICES environment variable as comma-separated
// serial:secret[:model] triples, falling back to built-in test units.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device
	secrets map[string]string // serial_number -> secret_key mapping
}

var _ repositories.DeviceRegistry = (*InMemoryRegistry)(nil)

// NewInMemoryRegistry creates a registry seeded from the environment
func NewInMemoryRegistry() *InMemoryRegistry {
	r := &InMemoryRegistry{
		devices: make(map[string]*entities.Device),
		secrets: make(map[string]string),
	}

	if spec := os.Getenv("LUMEN_DEVICES"); spec != "" {
		for _, item := range strings.Split(spec, ",") {
			parts := strings.Split(strings.TrimSpace(item), ":")
			if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
				continue
			}
			model := "lumen-g1"
			if len(parts) > 2 && parts[2] != "" {
				model = parts[2]
			}
			r.add(parts[0], parts[1], model)
		}
	}

	if len(r.devices) == 0 {
		// Built-in units for local development
		r.add("LUMEN001", "secret123", "lumen-g1")
		r.add("LUMEN002", "secret456", "lumen-g1")
		r.add("LUMEN003", "secret789", "lumen-g2")
	}

	return r
}

func (r *InMemoryRegistry) add(serialNumber, secret, model string) {
	device := &entities.Device{
		ID:           "device-" + serialNumber,
		SerialNumber: serialNumber,
		Model:        model,
	}
	r.devices[serialNumber] = device
	r.secrets[serialNumber] = secret
}

// ValidateDevice validates device credentials (serial number + secret)
func (r *InMemoryRegistry) ValidateDevice(serialNumber, secret string) (*entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	storedSecret, exists := r.secrets[serialNumber]
	if !exists {
		return nil, errors.New("device not found")
	}
	if storedSecret != secret {
		return nil, errors.New("invalid credentials")
	}
	return r.devices[serialNumber], nil
}
