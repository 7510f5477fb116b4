package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	"github.com/ByLCY/imprint/binding"
	"github.com/ByLCY/imprint/compose"
)

type handlers struct {
	engine *compose.Engine
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) assets(c *gin.Context) {
	s := h.engine.Schema()
	c.JSON(http.StatusOK, gin.H{
		"assets": h.engine.Assets().Names(),
		"size":   s.Frame.Size,
		"layers": len(s.Frame.Layers),
	})
}

// schema 返回当前加载的 schema（规范化后的写法，图层列表使用 layers）。
func (h *handlers) schema(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Schema())
}

// compose 以请求体中的 JSON 对象作为一行数据合成图片。
// ?format=jpg 返回 JPEG，默认 PNG。
func (h *handlers) compose(c *gin.Context) {
	var row binding.Data
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&row); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img, _, err := h.engine.Render(row)
	if err != nil {
		status := http.StatusInternalServerError
		if isDataError(err) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	format, contentType := imaging.PNG, "image/png"
	switch c.Query("format") {
	case "jpg", "jpeg":
		format, contentType = imaging.JPEG, "image/jpeg"
	case "", "png":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format 只支持 png 或 jpg"})
		return
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, format); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// isDataError 判断错误是否由提交的数据引起（变量缺失、文本放不下、图片无法解析等）。
func isDataError(err error) bool {
	var (
		layerErr *compose.LayerError
		varErr   *binding.UndefinedVariableError
	)
	return errors.As(err, &layerErr) || errors.As(err, &varErr)
}
