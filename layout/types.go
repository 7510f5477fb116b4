package layout

// 该文件定义文本排版与渲染器之间共用的几何类型与接口。

// Point 是画面上的坐标，单位为像素，原点在左上角。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box 是一段文本在某个字体下的包围盒尺寸。
type Box struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Face 是已加载的字体（含字号与颜色），由渲染器实现。
type Face interface {
	// Box 测量单行文本的包围盒。
	Box(text string) Box
}

// TextCanvas 负责把单行文本绘制到画面上，origin 为包围盒左上角。
type TextCanvas interface {
	DrawText(text string, face Face, origin Point) error
}

// Placement 记录一行文本最终使用的字体序号与绘制位置，供调试输出。
type Placement struct {
	Line      string `json:"line"`
	FaceIndex int    `json:"faceIndex"`
	Origin    Point  `json:"origin"`
	Box       Box    `json:"box"`
}
