// Package hclscene reads scene files written in HCL.
//
// A scene file declares types and objects:
//
//	type "Texture" {}
//	type "NormalMap" { base = "Texture" }
//
//	object "Material" "brick" {
//	  albedo   = ref("brick_albedo", "Texture")
//	  normal   = clone("brick_normal")
//	  layers   = [ref("dirt"), ref("moss")]
//	  shader   = required_file("shaders/brick.glsl")
//	  settings = { preview = file("previews/brick.png") }
//	}
//
// ref and clone record pointer properties, file and required_file record file
// dependencies. They may be nested inside tuples and objects; the property path
// follows the nesting, e.g. layers[1] or settings.preview. File paths are
// relative to the file that declares them.
package hclscene
