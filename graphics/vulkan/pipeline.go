package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/forge3d/forge/graphics"
)

type pipeline struct {
	dev       *Device
	handle    vk.Pipeline
	layout    vk.PipelineLayout
	setLayout vk.DescriptorSetLayout
	bindings  []graphics.BindingKind
	bindPoint vk.PipelineBindPoint
	label     string
}

// vertex layout shared by every mesh pipeline: interleaved position + normal.
const vertexStride = 24

func (d *Device) CreateGraphicsPipeline(desc graphics.PipelineDesc) (graphics.Pipeline, error) {
	if len(desc.Shaders.Vertex) == 0 || len(desc.Shaders.Fragment) == 0 {
		return nil, fmt.Errorf("vulkan: pipeline %s needs vertex and fragment shaders", desc.Label)
	}
	compatPass, err := d.pipelineCompatPass()
	if err != nil {
		return nil, err
	}

	vertModule, err := d.createShaderModule(desc.Shaders.Vertex)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s vertex stage: %w", desc.Label, err)
	}
	defer vk.DestroyShaderModule(d.handle, vertModule, nil)
	fragModule, err := d.createShaderModule(desc.Shaders.Fragment)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s fragment stage: %w", desc.Label, err)
	}
	defer vk.DestroyShaderModule(d.handle, fragModule, nil)

	layout, setLayout, err := d.createPipelineLayout(desc.Bindings)
	if err != nil {
		return nil, err
	}

	depthTest := vk.False
	if desc.DepthTest {
		depthTest = vk.True
	}
	blend := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if desc.AlphaBlend {
		blend.BlendEnable = vk.True
		blend.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blend.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blend.ColorBlendOp = vk.BlendOpAdd
		blend.SrcAlphaBlendFactor = vk.BlendFactorOne
		blend.DstAlphaBlendFactor = vk.BlendFactorZero
		blend.AlphaBlendOp = vk.BlendOpAdd
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(d.handle, vk.PipelineCache(vk.NullHandle), 1,
		[]vk.GraphicsPipelineCreateInfo{{
			SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
			StageCount: 2,
			PStages: []vk.PipelineShaderStageCreateInfo{
				{
					SType:  vk.StructureTypePipelineShaderStageCreateInfo,
					Stage:  vk.ShaderStageVertexBit,
					Module: vertModule,
					PName:  safeString("main"),
				},
				{
					SType:  vk.StructureTypePipelineShaderStageCreateInfo,
					Stage:  vk.ShaderStageFragmentBit,
					Module: fragModule,
					PName:  safeString("main"),
				},
			},
			PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
				SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
				VertexBindingDescriptionCount:   1,
				PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
					Binding:   0,
					Stride:    vertexStride,
					InputRate: vk.VertexInputRateVertex,
				}},
				VertexAttributeDescriptionCount: 2,
				PVertexAttributeDescriptions: []vk.VertexInputAttributeDescription{
					{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
					{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
				},
			},
			PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
				SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
				Topology: vk.PrimitiveTopologyTriangleList,
			},
			PViewportState: &vk.PipelineViewportStateCreateInfo{
				SType:         vk.StructureTypePipelineViewportStateCreateInfo,
				ViewportCount: 1,
				ScissorCount:  1,
			},
			PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
				SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
				PolygonMode: vk.PolygonModeFill,
				CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
				FrontFace:   vk.FrontFaceCounterClockwise,
				LineWidth:   1,
			},
			PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
				SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
				RasterizationSamples: vk.SampleCount1Bit,
			},
			PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
				SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
				DepthTestEnable:  vk.Bool32(depthTest),
				DepthWriteEnable: vk.Bool32(depthTest),
				DepthCompareOp:   vk.CompareOpLess,
			},
			PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
				SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
				AttachmentCount: 1,
				PAttachments:    []vk.PipelineColorBlendAttachmentState{blend},
			},
			PDynamicState: &vk.PipelineDynamicStateCreateInfo{
				SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
				DynamicStateCount: 2,
				PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
			},
			Layout:     layout,
			RenderPass: compatPass,
			Subpass:    0,
		}}, nil, pipelines)
	if err := result(ret, "creating graphics pipeline "+desc.Label); err != nil {
		d.destroyLayouts(layout, setLayout)
		return nil, err
	}
	return &pipeline{dev: d, handle: pipelines[0], layout: layout, setLayout: setLayout,
		bindings: desc.Bindings, bindPoint: vk.PipelineBindPointGraphics, label: desc.Label}, nil
}

func (d *Device) CreateComputePipeline(desc graphics.PipelineDesc) (graphics.Pipeline, error) {
	if len(desc.Shaders.Compute) == 0 {
		return nil, fmt.Errorf("vulkan: pipeline %s needs a compute shader", desc.Label)
	}
	module, err := d.createShaderModule(desc.Shaders.Compute)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s compute stage: %w", desc.Label, err)
	}
	defer vk.DestroyShaderModule(d.handle, module, nil)

	layout, setLayout, err := d.createPipelineLayout(desc.Bindings)
	if err != nil {
		return nil, err
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateComputePipelines(d.handle, vk.PipelineCache(vk.NullHandle), 1,
		[]vk.ComputePipelineCreateInfo{{
			SType: vk.StructureTypeComputePipelineCreateInfo,
			Stage: vk.PipelineShaderStageCreateInfo{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageComputeBit,
				Module: module,
				PName:  safeString("main"),
			},
			Layout: layout,
		}}, nil, pipelines)
	if err := result(ret, "creating compute pipeline "+desc.Label); err != nil {
		d.destroyLayouts(layout, setLayout)
		return nil, err
	}
	return &pipeline{dev: d, handle: pipelines[0], layout: layout, setLayout: setLayout,
		bindings: desc.Bindings, bindPoint: vk.PipelineBindPointCompute, label: desc.Label}, nil
}

// pipelineCompatPass is the render pass graphics pipelines are created
// against. Every render target pass shares its attachment formats, so the
// passes are compatible and the pipeline binds against any target.
func (d *Device) pipelineCompatPass() (vk.RenderPass, error) {
	if d.compatPass != vk.NullRenderPass {
		return d.compatPass, nil
	}
	pass, err := d.createTargetPass(vk.AttachmentLoadOpLoad)
	if err != nil {
		return nil, err
	}
	d.compatPass = pass
	return pass, nil
}

// createPipelineLayout builds the descriptor set layout for the declared
// binding slots, one buffer per binding index, plus the pipeline layout over
// it. Pipelines without bindings get an empty layout and a null set layout.
func (d *Device) createPipelineLayout(bindings []graphics.BindingKind) (vk.PipelineLayout, vk.DescriptorSetLayout, error) {
	setLayout := vk.NullDescriptorSetLayout
	var setLayouts []vk.DescriptorSetLayout
	if len(bindings) > 0 {
		slots := make([]vk.DescriptorSetLayoutBinding, len(bindings))
		for i, kind := range bindings {
			slots[i] = vk.DescriptorSetLayoutBinding{
				Binding:         uint32(i),
				DescriptorType:  descriptorType(kind),
				DescriptorCount: 1,
				StageFlags: vk.ShaderStageFlags(
					vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit | vk.ShaderStageComputeBit),
			}
		}
		ret := vk.CreateDescriptorSetLayout(d.handle, &vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(slots)),
			PBindings:    slots,
		}, nil, &setLayout)
		if err := result(ret, "creating descriptor set layout"); err != nil {
			return vk.NullPipelineLayout, vk.NullDescriptorSetLayout, err
		}
		setLayouts = []vk.DescriptorSetLayout{setLayout}
	}

	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(d.handle, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}, nil, &layout)
	if err := result(ret, "creating pipeline layout"); err != nil {
		if setLayout != vk.NullDescriptorSetLayout {
			vk.DestroyDescriptorSetLayout(d.handle, setLayout, nil)
		}
		return vk.NullPipelineLayout, vk.NullDescriptorSetLayout, err
	}
	return layout, setLayout, nil
}

func descriptorType(kind graphics.BindingKind) vk.DescriptorType {
	if kind == graphics.BindingUniform {
		return vk.DescriptorTypeUniformBuffer
	}
	return vk.DescriptorTypeStorageBuffer
}

func (d *Device) destroyLayouts(layout vk.PipelineLayout, setLayout vk.DescriptorSetLayout) {
	vk.DestroyPipelineLayout(d.handle, layout, nil)
	if setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(d.handle, setLayout, nil)
	}
}

func (d *Device) createShaderModule(code []byte) (vk.ShaderModule, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("vulkan: SPIR-V blob length %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(d.handle, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}, nil, &module)
	if err := result(ret, "creating shader module"); err != nil {
		return nil, err
	}
	return module, nil
}

func (p *pipeline) Destroy() {
	vk.DestroyPipeline(p.dev.handle, p.handle, nil)
	p.dev.destroyLayouts(p.layout, p.setLayout)
}
