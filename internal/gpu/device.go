// Package gpu abstracts the depth-texture operations the shadow subsystem
// consumes from the renderer. The shadow atlas never touches texture memory
// directly; it requests and releases textures through a Device and passes the
// opaque handle back to the render pass.
package gpu

// TextureHandle identifies a GPU depth texture. Handles are opaque to
// callers; only the Device that issued a handle can interpret it.
type TextureHandle uint32

// NilTexture is the zero handle, never issued by a Device.
const NilTexture TextureHandle = 0

// Device creates, destroys and clears square depth textures.
type Device interface {
	// CreateDepthTexture allocates a size x size 32-bit depth texture and
	// returns its handle.
	CreateDepthTexture(size int) (TextureHandle, error)

	// DestroyTexture releases a texture. Unknown handles are ignored.
	DestroyTexture(handle TextureHandle)

	// ClearDepth enqueues a clear of the whole texture to maximum depth.
	// The call returns once the command is submitted; completion is ordered
	// by the underlying command queue, not observed by the CPU.
	ClearDepth(handle TextureHandle, size int)
}
