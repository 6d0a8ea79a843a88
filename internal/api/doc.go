// Package api 暴露文档生成服务的 HTTP 接口与内置提交页面。
package api
