//go:build cgo

package gpu

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// GLDevice implements Device on top of an OpenGL 4.1 core context.
// The context must be current on the calling thread for every method.
type GLDevice struct {
	clearFBO uint32 // lazily created framebuffer used for depth clears
}

// NewGLDevice creates a GL-backed device. The OpenGL context must already
// be initialized.
func NewGLDevice() *GLDevice {
	return &GLDevice{}
}

// CreateDepthTexture allocates a depth texture configured for shadow
// comparison sampling.
func (d *GLDevice) CreateDepthTexture(size int) (TextureHandle, error) {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)

	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		gl.DEPTH_COMPONENT32F,
		int32(size),
		int32(size),
		0,
		gl.DEPTH_COMPONENT,
		gl.FLOAT,
		nil,
	)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)

	// Clamp to border with white (1.0) so samples outside a region's UV
	// bounds read as unshadowed
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
	borderColor := []float32{1.0, 1.0, 1.0, 1.0}
	gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &borderColor[0])

	// Enable shadow comparison mode for sampler2DShadow
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)

	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := gl.GetError(); err != gl.NO_ERROR {
		gl.DeleteTextures(1, &tex)
		return NilTexture, fmt.Errorf("creating depth texture: GL error 0x%x", err)
	}

	return TextureHandle(tex), nil
}

// DestroyTexture releases the texture.
func (d *GLDevice) DestroyTexture(handle TextureHandle) {
	if handle == NilTexture {
		return
	}
	tex := uint32(handle)
	gl.DeleteTextures(1, &tex)
}

// ClearDepth clears the whole texture to depth 1.0 through a scratch
// framebuffer. The clear is submitted to the GL command queue and not
// waited on.
func (d *GLDevice) ClearDepth(handle TextureHandle, size int) {
	if handle == NilTexture {
		return
	}

	if d.clearFBO == 0 {
		gl.GenFramebuffers(1, &d.clearFBO)
	}

	var prevFBO int32
	gl.GetIntegerv(gl.FRAMEBUFFER_BINDING, &prevFBO)

	gl.BindFramebuffer(gl.FRAMEBUFFER, d.clearFBO)
	gl.FramebufferTexture2D(
		gl.FRAMEBUFFER,
		gl.DEPTH_ATTACHMENT,
		gl.TEXTURE_2D,
		uint32(handle),
		0,
	)
	gl.Viewport(0, 0, int32(size), int32(size))
	gl.ClearDepth(1.0)
	gl.Clear(gl.DEPTH_BUFFER_BIT)

	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(prevFBO))
}

// Destroy releases the scratch framebuffer.
func (d *GLDevice) Destroy() {
	if d.clearFBO != 0 {
		gl.DeleteFramebuffers(1, &d.clearFBO)
		d.clearFBO = 0
	}
}
