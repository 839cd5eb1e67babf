package testbed

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine"
	"github.com/spaghettifunk/vktogo/engine/core"
	"github.com/spaghettifunk/vktogo/engine/renderer/vulkan"
)

const (
	hudRefreshSeconds = 0.5
	hudMargin         = 8
	uploadTimeout     = 2 * time.Second
)

type vertex struct {
	Position [2]float32
	Color    [3]float32
}

var triangleVertices = []vertex{
	{Position: [2]float32{0.0, -0.6}, Color: [3]float32{1.0, 0.2, 0.2}},
	{Position: [2]float32{0.6, 0.5}, Color: [3]float32{0.2, 1.0, 0.2}},
	{Position: [2]float32{-0.6, 0.5}, Color: [3]float32{0.2, 0.4, 1.0}},
}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	renderer  *vulkan.Renderer
	shaderDir string

	triangle *vulkan.Pipeline
	hud      *vulkan.Pipeline

	vertices   *vulkan.Buffer
	hudImage   *vulkan.VulkanImage
	hudSampler vk.Sampler
	hudSet     vk.DescriptorSet
	hudLayout  vk.DescriptorSetLayout
	hudUpload  *vulkan.SubmitContext

	angle     float32
	width     uint32
	height    uint32
	sinceHUD  float64
	hudRect   mgl32.Vec4
	transform mgl32.Mat4
}

func NewTestGame(shaderDir string) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			Name: "vktogo testbed",
			State: &gameState{
				shaderDir: shaderDir,
				transform: mgl32.Ident4(),
			},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShaderChanged = tg.ShaderChanged
	tg.FnShutdown = tg.Shutdown
	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(r *vulkan.Renderer) error {
	state := g.state()
	state.renderer = r
	ctx := r.Context()

	var err error
	if err = g.createResources(ctx); err != nil {
		return err
	}

	state.hudSet, state.hudLayout, err = vulkan.NewDescriptorBuilder(r.Layouts, r.Descriptors).
		BindImage(0, vk.DescriptorTypeCombinedImageSampler, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), state.hudImage.DescriptorInfo(state.hudSampler)).
		Build()
	if err != nil {
		return errors.Wrap(err, "hud descriptor set")
	}

	if state.triangle, state.hud, err = g.buildPipelines(); err != nil {
		return err
	}

	core.LogInfo("%s initialized.", g.Name)
	return nil
}

// createResources allocates the vertex buffer and the HUD texture and fills
// both in one concurrent upload batch.
func (g *TestGame) createResources(ctx *vulkan.VulkanContext) error {
	state := g.state()
	var err error

	data := vertexBytes(triangleVertices)
	state.vertices, err = vulkan.CreateBuffer(ctx, uint64(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit), vulkan.MemoryUsageGpuOnly)
	if err != nil {
		return errors.Wrap(err, "vertex buffer")
	}

	state.hudImage, err = vulkan.CreateImage(ctx, vulkan.ImageConfig{
		Type:        vk.ImageType2d,
		Width:       hudWidth,
		Height:      hudHeight,
		Format:      vk.FormatR8g8b8a8Unorm,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		MemoryUsage: vulkan.MemoryUsageGpuOnly,
		CreateView:  true,
	})
	if err != nil {
		return errors.Wrap(err, "hud image")
	}

	state.hudSampler, err = vulkan.NewSamplerBuilder(ctx).
		SetFilter(vk.FilterNearest).
		SetAddressMode(vk.SamplerAddressModeClampToEdge).
		Build()
	if err != nil {
		return errors.Wrap(err, "hud sampler")
	}

	if state.hudUpload, err = vulkan.NewSubmitContext(ctx, vulkan.QueueGraphics); err != nil {
		return err
	}

	hud := rasterizeHUD("vktogo", "starting...")
	return vulkan.UploadBatch(context.Background(), ctx, vulkan.QueueGraphics, 2,
		func(_ context.Context, sc *vulkan.SubmitContext) error {
			return vulkan.UploadBufferData(sc, state.vertices, data, uploadTimeout)
		},
		func(_ context.Context, sc *vulkan.SubmitContext) error {
			return vulkan.UploadImageData(sc, state.hudImage, hud.Pix, uploadTimeout)
		},
	)
}

// buildPipelines compiles both pipelines from the .spv files on disk. The
// shader modules are released once the pipelines exist.
func (g *TestGame) buildPipelines() (*vulkan.Pipeline, *vulkan.Pipeline, error) {
	state := g.state()
	ctx := state.renderer.Context()

	load := func(name string, stage vk.ShaderStageFlagBits) (*vulkan.ShaderModule, error) {
		return vulkan.LoadShaderFile(ctx, filepath.Join(state.shaderDir, name), stage)
	}

	triVert, err := load("triangle.vert.spv", vk.ShaderStageVertexBit)
	if err != nil {
		return nil, nil, err
	}
	defer triVert.Destroy()
	triFrag, err := load("triangle.frag.spv", vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, nil, err
	}
	defer triFrag.Destroy()
	hudVert, err := load("hud.vert.spv", vk.ShaderStageVertexBit)
	if err != nil {
		return nil, nil, err
	}
	defer hudVert.Destroy()
	hudFrag, err := load("hud.frag.spv", vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, nil, err
	}
	defer hudFrag.Destroy()

	builder := vulkan.NewGraphicsPipelineBuilder(ctx)
	builder.AddShaderModule(triVert).
		AddShaderModule(triFrag).
		AddPushConstant(vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       uint32(unsafe.Sizeof(mgl32.Mat4{})),
		}).
		SetVertexInputBinding(vk.VertexInputBindingDescription{
			Binding:   0,
			Stride:    uint32(unsafe.Sizeof(vertex{})),
			InputRate: vk.VertexInputRateVertex,
		}).
		SetVertexAttributes(
			vk.VertexInputAttributeDescription{Location: 0, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(vertex{}.Position))},
			vk.VertexInputAttributeDescription{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(vertex{}.Color))},
		).
		EnableDepth(true, true, vk.CompareOpLess).
		SetRenderPass(state.renderer.RenderPass.Handle, 0)
	triangle, err := builder.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "triangle pipeline")
	}

	builder.Reset()
	builder.AddShaderModule(hudVert).
		AddShaderModule(hudFrag).
		AddDescriptorLayout(state.hudLayout).
		AddPushConstant(vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       uint32(unsafe.Sizeof(mgl32.Vec4{})),
		}).
		SetInputAssembly(vk.PrimitiveTopologyTriangleStrip, false).
		EnableBlending(true, vk.BlendFactorSrcAlpha, vk.BlendFactorOneMinusSrcAlpha, vk.BlendOpAdd).
		SetRenderPass(state.renderer.RenderPass.Handle, 0)
	hud, err := builder.Build()
	if err != nil {
		triangle.Destroy()
		return nil, nil, errors.Wrap(err, "hud pipeline")
	}
	return triangle, hud, nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	state.angle += float32(deltaTime) * mgl32.DegToRad(90)

	aspect := float32(1)
	if state.width > 0 {
		aspect = float32(state.height) / float32(state.width)
	}
	state.transform = mgl32.Scale3D(aspect, 1, 1).Mul4(mgl32.HomogRotate3DZ(state.angle))

	state.sinceHUD += deltaTime
	if state.sinceHUD < hudRefreshSeconds {
		return nil
	}
	state.sinceHUD = 0
	return g.refreshHUD()
}

// refreshHUD redraws the stats panel. The texture is sampled by frames in
// flight so the device is drained first.
func (g *TestGame) refreshHUD() error {
	state := g.state()
	metrics := state.renderer.Handler.Metrics()
	fps, frameTime := metrics.Frame()

	stats := fmt.Sprintf("%.0f fps  %.2f ms", fps, frameTime)
	if textWidth(stats) > hudWidth-2*hudPadding {
		stats = fmt.Sprintf("%.0f fps", fps)
	}
	frames := fmt.Sprintf("frame %d", state.renderer.Handler.FrameCount())

	if err := state.renderer.Context().WaitIdle(); err != nil {
		return err
	}
	return vulkan.UploadImageData(state.hudUpload, state.hudImage, rasterizeHUD(stats, frames).Pix, uploadTimeout)
}

func (g *TestGame) Render(frame *vulkan.Frame, deltaTime float64) error {
	state := g.state()
	cmd := frame.CommandBuffer()

	state.triangle.Bind(cmd)
	state.triangle.PushConstants(cmd, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, matrixBytes(&state.transform))
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{state.vertices.Handle}, []vk.DeviceSize{0})
	vk.CmdDraw(cmd, uint32(len(triangleVertices)), 1, 0, 0)

	state.hud.Bind(cmd)
	state.hud.BindDescriptorSets(cmd, 0, state.hudSet)
	state.hud.PushConstants(cmd, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, vec4Bytes(&state.hudRect))
	vk.CmdDraw(cmd, 4, 1, 0, 0)
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	state.hudRect = hudRect(width, height)
	return nil
}

// ShaderChanged rebuilds both pipelines when one of the testbed shaders is
// recompiled. A broken shader keeps the previous pipelines in place.
func (g *TestGame) ShaderChanged(path string) error {
	state := g.state()
	switch filepath.Base(path) {
	case "triangle.vert.spv", "triangle.frag.spv", "hud.vert.spv", "hud.frag.spv":
	default:
		return nil
	}

	triangle, hud, err := g.buildPipelines()
	if err != nil {
		return err
	}
	if err := state.renderer.Context().WaitIdle(); err != nil {
		triangle.Destroy()
		hud.Destroy()
		return err
	}
	state.triangle.Destroy()
	state.hud.Destroy()
	state.triangle, state.hud = triangle, hud
	core.LogInfo("Pipelines rebuilt after %s changed.", filepath.Base(path))
	return nil
}

// Shutdown destroys what Initialize created. The descriptor set and its
// layout belong to the renderer.
func (g *TestGame) Shutdown() error {
	state := g.state()
	if state.renderer == nil {
		return nil
	}
	ctx := state.renderer.Context()
	if state.hud != nil {
		state.hud.Destroy()
	}
	if state.triangle != nil {
		state.triangle.Destroy()
	}
	if state.hudUpload != nil {
		state.hudUpload.Destroy()
	}
	if state.hudSampler != vk.NullSampler {
		vulkan.DestroySampler(ctx, state.hudSampler)
	}
	if state.hudImage != nil {
		state.hudImage.Destroy()
	}
	if state.vertices != nil {
		state.vertices.Destroy()
	}
	return nil
}

// hudRect places the panel in the top left corner in clip space as
// (x, y, width, height).
func hudRect(width, height uint32) mgl32.Vec4 {
	if width == 0 || height == 0 {
		return mgl32.Vec4{}
	}
	w, h := float32(width), float32(height)
	return mgl32.Vec4{
		-1 + 2*hudMargin/w,
		-1 + 2*hudMargin/h,
		2 * hudWidth / w,
		2 * hudHeight / h,
	}
}

func vertexBytes(vertices []vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	size := len(vertices) * int(unsafe.Sizeof(vertices[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size)
}

func matrixBytes(m *mgl32.Mat4) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&m[0])), unsafe.Sizeof(*m))
}

func vec4Bytes(v *mgl32.Vec4) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), unsafe.Sizeof(*v))
}
