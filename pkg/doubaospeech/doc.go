// Package doubaospeech 提供豆包语音 (Volcengine) 二进制协议的 Go 实现
//
// 本包覆盖设备端语音 I/O 所需的部分：
//
//   - 帧编解码: 4 字节对齐的二进制头 + 长度前缀负载 (protocol.go)
//   - Session: 一条 WebSocket 连接，支持协作式取消 (session.go)
//   - TTS: 一次性合成 (operation=query) 与流式合成 (operation=submit)
//   - ASR: 分段上传有限音频并返回最终识别结果
//
// # 快速开始
//
//	client := doubaospeech.NewClient("your_app_id",
//	    doubaospeech.WithBearerToken("your_token"),
//	    doubaospeech.WithCluster("volcano_tts"),
//	)
//
// 一次性语音合成：
//
//	resp, err := client.TTS.SynthesizeOnce(ctx, &doubaospeech.TTSRequest{
//	    Text: "你好，世界！",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// resp.Audio 包含音频数据
//
// 流式语音合成：
//
//	stream, err := client.TTS.SynthesizeStream(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
//	for chunk, err := range stream.Recv() {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // 处理 chunk.Audio
//	}
//	// stream.Status() 区分 StreamCompleted 与 StreamCancelled
//
// 语音识别：
//
//	result, err := client.ASR.Recognize(ctx, wavBytes, &doubaospeech.RecognizeConfig{
//	    Format: doubaospeech.FormatWAV,
//	})
//
// # 认证方式
//
// Bearer Token，握手头格式为 "Authorization: Bearer; {token}"：
//
//	client := doubaospeech.NewClient(appID, doubaospeech.WithBearerToken(token))
//
// 识别也支持 HMAC256 签名，握手前先构造完整请求帧参与签名：
//
//	client := doubaospeech.NewClient(appID,
//	    doubaospeech.WithBearerToken(token),
//	    doubaospeech.WithSignature(secret),
//	)
//
// # 集群选择
//
//   - volcano_tts: TTS 标准版
//   - volcengine_streaming_common: ASR 流式识别
//
// # 错误处理
//
// 服务端错误帧与非成功状态码都会转换为 *Error，Code 与 Message 保持原样：
//
//	if err != nil {
//	    if e, ok := doubaospeech.AsError(err); ok {
//	        if e.Retryable() {
//	            // 由调用方决定重试策略
//	        }
//	    }
//	}
//
// 帧格式错误可用 errors.Is(err, doubaospeech.ErrFraming) 判断，网络错误为
// *TransportError。协议层不做任何重试。
package doubaospeech
