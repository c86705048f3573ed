package device

import "fmt"

// Status is a numeric device status. Values follow the OpenCL error codes so
// that drivers backed by a real runtime can pass them through unchanged.
type Status int32

const (
	StatusSuccess                      Status = 0
	StatusDeviceNotFound               Status = -1
	StatusDeviceNotAvailable           Status = -2
	StatusCompilerNotAvailable         Status = -3
	StatusMemObjectAllocationFailure   Status = -4
	StatusOutOfResources               Status = -5
	StatusOutOfHostMemory              Status = -6
	StatusBuildProgramFailure          Status = -11
	StatusInvalidValue                 Status = -30
	StatusInvalidDeviceType            Status = -31
	StatusInvalidPlatform              Status = -32
	StatusInvalidDevice                Status = -33
	StatusInvalidContext               Status = -34
	StatusInvalidCommandQueue          Status = -36
	StatusInvalidHostPtr               Status = -37
	StatusInvalidMemObject             Status = -38
	StatusInvalidImageSize             Status = -40
	StatusInvalidProgram               Status = -44
	StatusInvalidProgramExecutable     Status = -45
	StatusInvalidKernelName            Status = -46
	StatusInvalidKernel                Status = -48
	StatusInvalidArgIndex              Status = -49
	StatusInvalidArgValue              Status = -50
	StatusInvalidKernelArgs            Status = -52
	StatusInvalidWorkDimension         Status = -53
	StatusInvalidWorkGroupSize         Status = -54
	StatusInvalidOperation             Status = -59
	StatusInvalidGLObject              Status = -60
	StatusInvalidBufferSize            Status = -61
	StatusInvalidGlobalWorkSize        Status = -63
	StatusInvalidGLSharegroupReference Status = -1000
	StatusPlatformNotFound             Status = -1001
	StatusUnknown                      Status = -9999
)

var statusNames = map[Status]string{
	StatusSuccess:                      "CL_SUCCESS",
	StatusDeviceNotFound:               "CL_DEVICE_NOT_FOUND",
	StatusDeviceNotAvailable:           "CL_DEVICE_NOT_AVAILABLE",
	StatusCompilerNotAvailable:         "CL_COMPILER_NOT_AVAILABLE",
	StatusMemObjectAllocationFailure:   "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	StatusOutOfResources:               "CL_OUT_OF_RESOURCES",
	StatusOutOfHostMemory:              "CL_OUT_OF_HOST_MEMORY",
	StatusBuildProgramFailure:          "CL_BUILD_PROGRAM_FAILURE",
	StatusInvalidValue:                 "CL_INVALID_VALUE",
	StatusInvalidDeviceType:            "CL_INVALID_DEVICE_TYPE",
	StatusInvalidPlatform:              "CL_INVALID_PLATFORM",
	StatusInvalidDevice:                "CL_INVALID_DEVICE",
	StatusInvalidContext:               "CL_INVALID_CONTEXT",
	StatusInvalidCommandQueue:          "CL_INVALID_COMMAND_QUEUE",
	StatusInvalidHostPtr:               "CL_INVALID_HOST_PTR",
	StatusInvalidMemObject:             "CL_INVALID_MEM_OBJECT",
	StatusInvalidImageSize:             "CL_INVALID_IMAGE_SIZE",
	StatusInvalidProgram:               "CL_INVALID_PROGRAM",
	StatusInvalidProgramExecutable:     "CL_INVALID_PROGRAM_EXECUTABLE",
	StatusInvalidKernelName:            "CL_INVALID_KERNEL_NAME",
	StatusInvalidKernel:                "CL_INVALID_KERNEL",
	StatusInvalidArgIndex:              "CL_INVALID_ARG_INDEX",
	StatusInvalidArgValue:              "CL_INVALID_ARG_VALUE",
	StatusInvalidKernelArgs:            "CL_INVALID_KERNEL_ARGS",
	StatusInvalidWorkDimension:         "CL_INVALID_WORK_DIMENSION",
	StatusInvalidWorkGroupSize:         "CL_INVALID_WORK_GROUP_SIZE",
	StatusInvalidOperation:             "CL_INVALID_OPERATION",
	StatusInvalidGLObject:              "CL_INVALID_GL_OBJECT",
	StatusInvalidBufferSize:            "CL_INVALID_BUFFER_SIZE",
	StatusInvalidGlobalWorkSize:        "CL_INVALID_GLOBAL_WORK_SIZE",
	StatusInvalidGLSharegroupReference: "CL_INVALID_GL_SHAREGROUP_REFERENCE_KHR",
	StatusPlatformNotFound:             "CL_PLATFORM_NOT_FOUND_KHR",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "CL_UNKNOWN_ERROR"
}

// StatusError is the single error type drivers return. Op names the failing
// driver call, Log carries the compiler output for build failures.
type StatusError struct {
	Op     string
	Status Status
	Detail string
	Log    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: %s (%d)", e.Op, e.Status, int32(e.Status))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Errorf builds a StatusError with a formatted detail message.
func Errorf(op string, status Status, format string, args ...any) *StatusError {
	return &StatusError{Op: op, Status: status, Detail: fmt.Sprintf(format, args...)}
}
