package engine

import "fmt"

// DeviceInfo describes one device as the driver reports it.
type DeviceInfo struct {
	Ordinal      int
	Name         string
	Major, Minor int
	TotalMem     uint64
	// Eligible is false when the device is below the capability floor.
	Eligible bool
}

func (d DeviceInfo) Compute() string { return fmt.Sprintf("%d.%d", d.Major, d.Minor) }

// Devices initializes the driver and lists every device it exposes.
func (e *Engine) Devices() ([]DeviceInfo, error) {
	if err := e.init(); err != nil {
		return nil, err
	}
	count, err := e.drv.DeviceCount()
	if err != nil {
		return nil, err
	}
	out := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		dev, err := e.drv.Device(i)
		if err != nil {
			return nil, err
		}
		info := DeviceInfo{Ordinal: i}
		if info.Name, err = e.drv.DeviceName(dev); err != nil {
			return nil, err
		}
		if info.Major, info.Minor, err = e.drv.ComputeCapability(dev); err != nil {
			return nil, err
		}
		if info.TotalMem, err = e.drv.TotalMem(dev); err != nil {
			return nil, err
		}
		info.Eligible = info.Major > e.opts.MinMajor || (info.Major == e.opts.MinMajor && info.Minor >= e.opts.MinMinor)
		out = append(out, info)
	}
	return out, nil
}
