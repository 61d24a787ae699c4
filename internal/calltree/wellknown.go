package calltree

import "github.com/NS2CDT/PerfAnalyzer/internal/nametable"

const (
	ThreadNodeName       = "Thread"
	GCStepNodeName       = "ScriptGC_STEP"
	HeapFreeNodeName     = "HeapAllocator::Free"
	HeapAllocateNodeName = "HeapAllocator::Allocate"
	ServerUpdateNodeName = "ServerGame::Update"
	ClientUpdateNodeName = "ClientGame::Update"
	WaitForGCJobNodeName = "ClientGame::FinishRendering (wait for GC job)"
	WaitForWorldNodeName = "ClientGame::Update (wait for update world job to finish)"

	// GCThreadName is the entry node of the thread that runs garbage
	// collection. GC steps inside it are its own work, not an interruption.
	GCThreadName = "CollectGarbageJob::Run"
)

// GPUWaitNodeNames lists the present calls in lookup order. The first one
// bound in a log is its GPU wait node.
var GPUWaitNodeNames = []string{
	"D3D11Device::Present",
	"D3D9Device::Present",
	"OpenGLDevice::Present",
}

// WellKnown holds the ids of the nodes that attribution treats specially.
// Ids absent from the log are nametable.NoNode.
type WellKnown struct {
	Thread          nametable.NodeID
	GCStep          nametable.NodeID
	GCThread        nametable.NodeID
	HeapFree        nametable.NodeID
	HeapAllocate    nametable.NodeID
	ServerUpdate    nametable.NodeID
	ClientUpdate    nametable.NodeID
	WaitForGCJob    nametable.NodeID
	WaitForWorldJob nametable.NodeID
	WaitForGPU      nametable.NodeID
	Idle            nametable.IDSet
}

// ResolveWellKnown looks up every well-known node in names.
func ResolveWellKnown(names *nametable.Table) *WellKnown {
	return &WellKnown{
		Thread:          names.ID(ThreadNodeName),
		GCStep:          names.ID(GCStepNodeName),
		GCThread:        names.ID(GCThreadName),
		HeapFree:        names.ID(HeapFreeNodeName),
		HeapAllocate:    names.ID(HeapAllocateNodeName),
		ServerUpdate:    names.ID(ServerUpdateNodeName),
		ClientUpdate:    names.ID(ClientUpdateNodeName),
		WaitForGCJob:    names.ID(WaitForGCJobNodeName),
		WaitForWorldJob: names.ID(WaitForWorldNodeName),
		WaitForGPU:      names.FirstID(GPUWaitNodeNames...),
		Idle:            names.Select(nametable.IsIdleName),
	}
}

func (wk *WellKnown) IsIdle(id nametable.NodeID) bool {
	return wk.Idle.Contains(id)
}

func (wk *WellKnown) IsHeap(id nametable.NodeID) bool {
	return id == wk.HeapFree || id == wk.HeapAllocate
}

func (wk *WellKnown) IsWait(id nametable.NodeID) bool {
	return id == wk.WaitForGCJob || id == wk.WaitForWorldJob || id == wk.WaitForGPU
}

func (wk *WellKnown) IsMainEntry(id nametable.NodeID) bool {
	return id == wk.ServerUpdate || id == wk.ClientUpdate
}
