package cuda

// Driver entry point names, used in errors and for symbol lookup.
const (
	OpInit              = "cuInit"
	OpDeviceGetCount    = "cuDeviceGetCount"
	OpDeviceGet         = "cuDeviceGet"
	OpDeviceGetName     = "cuDeviceGetName"
	OpComputeCapability = "cuDeviceComputeCapability"
	OpDeviceTotalMem    = "cuDeviceTotalMem"
	OpCtxCreate         = "cuCtxCreate"
	OpCtxDestroy        = "cuCtxDestroy"
	OpCtxSynchronize    = "cuCtxSynchronize"
	OpModuleLoadData    = "cuModuleLoadData"
	OpModuleGetFunction = "cuModuleGetFunction"
	OpModuleUnload      = "cuModuleUnload"
	OpMemAlloc          = "cuMemAlloc"
	OpMemFree           = "cuMemFree"
	OpMemcpyHtoD        = "cuMemcpyHtoD"
	OpMemcpyDtoH        = "cuMemcpyDtoH"
	OpLaunchKernel      = "cuLaunchKernel"
)
